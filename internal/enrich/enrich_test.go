package enrich

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/pool-sentinel/internal/bus"
	"github.com/aman-zulfiqar/pool-sentinel/internal/hype"
	"github.com/aman-zulfiqar/pool-sentinel/internal/publish"
	"github.com/aman-zulfiqar/pool-sentinel/internal/rpcx"
	"github.com/aman-zulfiqar/pool-sentinel/internal/safety"
	"github.com/aman-zulfiqar/pool-sentinel/internal/sink"
	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

const tokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// fakeFetcher answers safety.Analyzer's account reads from a fixed table;
// every mint here decodes as a legacy token with no authorities set (the
// all-zero 82-byte layout), so DefaultPolicy classifies it safe.
type fakeFetcher struct {
	owner string
}

func (f *fakeFetcher) GetAccountInfo(ctx context.Context, account string) (*rpcx.AccountValue, error) {
	return &rpcx.AccountValue{
		Owner: f.owner,
		Data:  []string{base64.StdEncoding.EncodeToString(make([]byte, 82)), "base64"},
	}, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	sent  []alert.EnrichedPoolAlert
	failN int
}

func (p *recordingPublisher) SendAlert(ctx context.Context, a alert.EnrichedPoolAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failN > 0 {
		p.failN--
		return fmt.Errorf("publisher unavailable")
	}
	p.sent = append(p.sent, a)
	return nil
}

func (p *recordingPublisher) snapshot() []alert.EnrichedPoolAlert {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]alert.EnrichedPoolAlert, len(p.sent))
	copy(out, p.sent)
	return out
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && len(data) > 0
	}, time.Second, 10*time.Millisecond)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var lines []string
	for _, l := range splitLines(data) {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func splitLines(data []byte) []string {
	var out []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			out = append(out, string(data[start:i]))
			start = i + 1
		}
	}
	return out
}

func newPipeline(t *testing.T, publisher publish.Publisher, alertsPath, errsPath string) (*Pipeline, *bus.Bus) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	analyzer, err := safety.New(&fakeFetcher{owner: tokenProgramID}, 100, logger)
	require.NoError(t, err)

	alertsSink, err := sink.New(sink.Config{Path: alertsPath, FlushInterval: 10 * time.Millisecond, ChannelDepth: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = alertsSink.Close() })

	errsSink, err := sink.New(sink.Config{Path: errsPath, FlushInterval: 10 * time.Millisecond, ChannelDepth: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = errsSink.Close() })

	dispatcher := publish.NewDispatcher(publisher, 1, logger)
	hypeRegistry := hype.NewRegistry(hype.DefaultConfig)

	p, err := New(Config{DedupTTL: time.Second, Policy: alert.DefaultPolicy(), Logger: logger},
		analyzer, nil, nil, hypeRegistry, alertsSink, errsSink, dispatcher, nil)
	require.NoError(t, err)

	b := bus.New(16, logger)
	return p, b
}

func poolInfo(account string) alert.PoolInfo {
	base := "BaseMint1111111111111111111111111111111111"
	quote := "QuoteMint111111111111111111111111111111111"
	return alert.PoolInfo{
		Dex:       alert.OrcaWhirlpools,
		Id:        alert.PoolId{Program: "OrcaProg", Account: account},
		BaseMint:  &base,
		QuoteMint: &quote,
	}
}

func TestPipeline_EmitsEnrichedAlertForNewPool(t *testing.T) {
	dir := t.TempDir()
	alertsPath := filepath.Join(dir, "alerts.jsonl")
	publisher := &recordingPublisher{}
	errsPath := filepath.Join(dir, "errors.jsonl")
	p, b := newPipeline(t, publisher, alertsPath, errsPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); p.Run(ctx, b) }()

	info := poolInfo("Pool1")
	b.Publish(alert.PoolEvent{Kind: alert.EventAccountNew, Info: &info})

	require.Eventually(t, func() bool { return len(publisher.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	sent := publisher.snapshot()[0]
	assert.Equal(t, info.Id, sent.Id)
	assert.True(t, sent.BaseReport.DecisionSafe)
	assert.True(t, sent.QuoteReport.DecisionSafe)

	cancel()
	wg.Wait()
}

func TestPipeline_DedupSuppressesSecondEventWithinTTL(t *testing.T) {
	dir := t.TempDir()
	alertsPath := filepath.Join(dir, "alerts.jsonl")
	publisher := &recordingPublisher{}
	errsPath := filepath.Join(dir, "errors.jsonl")
	p, b := newPipeline(t, publisher, alertsPath, errsPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); p.Run(ctx, b) }()

	info := poolInfo("Pool1")
	b.Publish(alert.PoolEvent{Kind: alert.EventAccountNew, Info: &info})
	require.Eventually(t, func() bool { return len(publisher.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(alert.PoolEvent{Kind: alert.EventAccountChanged, Info: &info})

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, publisher.snapshot(), 1, "second event within TTL should be deduped")

	cancel()
	wg.Wait()
}

func TestPipeline_DedupAllowsReplayAfterTTLExpires(t *testing.T) {
	dir := t.TempDir()
	alertsPath := filepath.Join(dir, "alerts.jsonl")
	publisher := &recordingPublisher{}
	errsPath := filepath.Join(dir, "errors.jsonl")
	p, b := newPipeline(t, publisher, alertsPath, errsPath)
	p.ttl = 30 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); p.Run(ctx, b) }()

	info := poolInfo("Pool1")
	b.Publish(alert.PoolEvent{Kind: alert.EventAccountNew, Info: &info})
	require.Eventually(t, func() bool { return len(publisher.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	b.Publish(alert.PoolEvent{Kind: alert.EventAccountChanged, Info: &info})
	require.Eventually(t, func() bool { return len(publisher.snapshot()) == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestPipeline_IgnoresNonAccountEvents(t *testing.T) {
	dir := t.TempDir()
	alertsPath := filepath.Join(dir, "alerts.jsonl")
	publisher := &recordingPublisher{}
	errsPath := filepath.Join(dir, "errors.jsonl")
	p, b := newPipeline(t, publisher, alertsPath, errsPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); p.Run(ctx, b) }()

	b.Publish(alert.PoolEvent{Kind: alert.EventSnapshotStarted, Program: "OrcaProg"})
	b.Publish(alert.PoolEvent{Kind: alert.EventResyncTick, Program: "OrcaProg"})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, publisher.snapshot())

	cancel()
	wg.Wait()
}

func TestPipeline_PublisherFailureWritesErrorRecord(t *testing.T) {
	dir := t.TempDir()
	alertsPath := filepath.Join(dir, "alerts.jsonl")
	publisher := &recordingPublisher{failN: 10}
	errsPath := filepath.Join(dir, "errors.jsonl")
	p, b := newPipeline(t, publisher, alertsPath, errsPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); p.Run(ctx, b) }()

	info := poolInfo("Pool1")
	b.Publish(alert.PoolEvent{Kind: alert.EventAccountNew, Info: &info})

	lines := readLines(t, errsPath)
	require.NotEmpty(t, lines)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Contains(t, rec, "error")

	cancel()
	wg.Wait()
}
