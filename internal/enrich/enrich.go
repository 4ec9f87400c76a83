// Package enrich is the pipeline's consumer-side stage: it subscribes to
// internal/bus, deduplicates AccountNew/AccountChanged events against a
// short-lived LRU, fans each surviving pool out to the token-safety,
// liquidity, and hype components concurrently, assembles the result into
// an alert.EnrichedPoolAlert, and hands it to the file sink and the
// outbound publisher dispatcher.
package enrich

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/pool-sentinel/internal/bus"
	"github.com/aman-zulfiqar/pool-sentinel/internal/hype"
	"github.com/aman-zulfiqar/pool-sentinel/internal/liquidity"
	"github.com/aman-zulfiqar/pool-sentinel/internal/publish"
	"github.com/aman-zulfiqar/pool-sentinel/internal/safety"
	"github.com/aman-zulfiqar/pool-sentinel/internal/sink"
	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// DefaultDedupCacheSize and DefaultDedupTTL mirror spec.md §4.H's stated
// 10,000-entry / 5-minute dedup memoization budget.
const (
	DefaultDedupCacheSize = 10_000
	DefaultDedupTTL       = 5 * time.Minute
)

// AlertObserver is invoked after every successfully assembled
// EnrichedPoolAlert, letting an external admin/inspection layer (e.g. an
// echo-based HTTP service) subscribe without the core pipeline depending
// on that layer's transport, per Design Note §9's "inject a capability,
// don't import the consumer."
type AlertObserver interface {
	ObserveAlert(a alert.EnrichedPoolAlert)
}

// VaultLookup resolves the two vault token accounts and CLMM sqrt-price
// (if any) for a pool, a capability the watcher's decoded PoolInfo alone
// does not carry. Implementations typically read this straight from the
// same raw account bytes the watcher already fetched.
type VaultLookup interface {
	Lookup(ctx context.Context, info alert.PoolInfo) (liquidity.PoolInput, bool)
}

// Config controls a Pipeline's dedup cache and fan-out policy.
type Config struct {
	DedupCacheSize int
	DedupTTL       time.Duration
	QuoteMints     []string
	Policy         alert.Policy
	RouteSupportsMemo bool
	Logger         *logrus.Logger
}

// Pipeline is the enrichment stage described above.
type Pipeline struct {
	cfg      Config
	logger   *logrus.Logger
	analyzer *safety.Analyzer
	vaults   VaultLookup
	reader   liquidity.VaultReader
	hype     *hype.Registry
	alerts   *sink.Sink
	errs     *sink.Sink
	dispatch *publish.Dispatcher
	observer AlertObserver

	mu    sync.Mutex
	dedup *lru.Cache
	ttl   time.Duration
}

type dedupEntry struct{ at time.Time }

// New constructs a Pipeline. cacheSize/ttl <= 0 fall back to the
// spec.md-stated defaults.
func New(cfg Config, analyzer *safety.Analyzer, vaults VaultLookup, reader liquidity.VaultReader, hypeRegistry *hype.Registry, alertsSink, errsSink *sink.Sink, dispatcher *publish.Dispatcher, observer AlertObserver) (*Pipeline, error) {
	if cfg.DedupCacheSize <= 0 {
		cfg.DedupCacheSize = DefaultDedupCacheSize
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	cache, err := lru.New(cfg.DedupCacheSize)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:      cfg,
		logger:   cfg.Logger,
		analyzer: analyzer,
		vaults:   vaults,
		reader:   reader,
		hype:     hypeRegistry,
		alerts:   alertsSink,
		errs:     errsSink,
		dispatch: dispatcher,
		observer: observer,
		dedup:    cache,
		ttl:      cfg.DedupTTL,
	}, nil
}

// Run subscribes to bus and processes AccountNew/AccountChanged events
// until ctx is done. Each surviving event is enriched on its own
// goroutine so one pool's slow RPC calls never delay another's.
func (p *Pipeline) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Kind != alert.EventAccountNew && ev.Kind != alert.EventAccountChanged {
				continue
			}
			if ev.Info == nil || p.shouldSkip(*ev.Info) {
				continue
			}

			info := *ev.Info
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.process(ctx, info)
			}()
		}
	}
}

// shouldSkip reports whether this pool was already enriched within the
// dedup TTL, under a single lock acquisition per Design Note §9: the
// check and the insert both happen while mu is held, but the RPC-bound
// safety/liquidity calls in process() run entirely outside it.
func (p *Pipeline) shouldSkip(info alert.PoolInfo) bool {
	key := info.Id.String()

	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.dedup.Get(key); ok {
		if time.Since(v.(dedupEntry).at) < p.ttl {
			return true
		}
	}
	p.dedup.Add(key, dedupEntry{at: time.Now()})
	return false
}

// process performs the all-or-nothing two-mint safety join plus the
// liquidity/hype reads, assembles the alert, and dispatches it. The two
// safety.Analyze calls run concurrently via errgroup: if either mint
// lookup fails the whole enrichment fails together, matching Design
// Note §9's "all-or-nothing" requirement rather than emitting an alert
// with one side silently missing.
func (p *Pipeline) process(ctx context.Context, info alert.PoolInfo) {
	log := p.logger.WithFields(info.Id.LogFields())

	var baseReport, quoteReport alert.TokenSafetyReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if info.BaseMint == nil {
			return nil
		}
		r, err := p.analyzer.Analyze(gctx, *info.BaseMint, p.cfg.Policy, p.cfg.RouteSupportsMemo)
		if err != nil {
			return err
		}
		baseReport = *r
		return nil
	})
	g.Go(func() error {
		if info.QuoteMint == nil {
			return nil
		}
		r, err := p.analyzer.Analyze(gctx, *info.QuoteMint, p.cfg.Policy, p.cfg.RouteSupportsMemo)
		if err != nil {
			return err
		}
		quoteReport = *r
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Warn("enrich: token safety lookup failed, dropping pool this cycle")
		p.writeError(info, err)
		return
	}

	bundle := alert.PoolTokenBundle{
		Id:          info.Id,
		BaseReport:  baseReport,
		QuoteReport: quoteReport,
		FeeBps:      info.FeeBps,
		TickSpacing: info.TickSpacing,
		TsMs:        alert.NowMs(time.Now()),
	}

	out := alert.EnrichedPoolAlert{PoolTokenBundle: bundle}

	if p.vaults != nil && p.reader != nil {
		if in, ok := p.vaults.Lookup(ctx, info); ok {
			in.QuoteMints = p.cfg.QuoteMints
			if liq, err := liquidity.ComputeQuick(ctx, p.reader, in); err == nil {
				out.Liquidity = liq
			} else {
				log.WithError(err).Debug("enrich: quick liquidity estimate failed")
			}
		}
	}

	if p.hype != nil {
		// Hype is tracked at program granularity (see internal/hype's
		// doc comment); snapshot under the same key the watcher ingests
		// ProgramLog events with.
		snap := p.hype.Snapshot(alert.PoolId{Program: info.Id.Program}, time.Now())
		out.Hype = &snap
	}

	if p.alerts != nil {
		if err := p.alerts.WriteJSON(out); err != nil {
			log.WithError(err).Warn("enrich: alerts sink write failed")
		}
	}

	if p.observer != nil {
		p.observer.ObserveAlert(out)
	}

	if p.dispatch != nil {
		if err := p.dispatch.Dispatch(ctx, out); err != nil {
			log.WithError(err).Warn("enrich: publisher dispatch exhausted retries")
			p.writeError(info, err)
		}
	}
}

func (p *Pipeline) writeError(info alert.PoolInfo, err error) {
	if p.errs == nil {
		return
	}
	rec := map[string]interface{}{
		"pool":  info.Id,
		"error": err.Error(),
		"ts_ms": alert.NowMs(time.Now()),
	}
	if writeErr := p.errs.WriteJSON(rec); writeErr != nil {
		p.logger.WithError(writeErr).Error("enrich: errors sink write failed")
	}
}
