// Package sink writes JSON records to a local JSONL file,
// batching writes behind a bounded channel so a slow disk never blocks
// the enrichment goroutines publishing alerts. Kept on stdlib
// encoding/json rather than a third-party codec: every repo in the
// example pack that persists JSON to disk uses encoding/json directly
// for this exact concern, so there is no ecosystem convention to follow
// instead.
package sink

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config controls the sink's batching and rotation behavior.
type Config struct {
	Path          string
	FlushInterval time.Duration
	ChannelDepth  int
	RotateDaily   bool
	Logger        *logrus.Logger
}

// Sink batches arbitrary JSON-marshalable records to one JSONL file. One
// Sink instance owns one stream name (e.g. "alerts_enriched" or "errors"
// per spec.md §6); cmd/sentinel constructs one per stream and hands both
// to the enrichment pipeline.
type Sink struct {
	cfg    Config
	logger *logrus.Logger
	queue  chan interface{}
	done   chan struct{}

	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	currentDate string

	closedMu sync.RWMutex
	closed   bool
}

// New constructs a Sink and starts its background flush loop. Call
// Close to stop the loop and flush any buffered records.
func New(cfg Config) (*Sink, error) {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 700 * time.Millisecond
	}
	if cfg.ChannelDepth <= 0 {
		cfg.ChannelDepth = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	s := &Sink{
		cfg:    cfg,
		logger: cfg.Logger,
		queue:  make(chan interface{}, cfg.ChannelDepth),
		done:   make(chan struct{}),
	}

	if err := s.openCurrent(); err != nil {
		return nil, err
	}

	go s.run()
	return s, nil
}

// ErrSinkClosed is returned by WriteJSON once the sink has been closed;
// per spec.md §4.I this is the only backpressure failure a caller ever
// observes, since the channel send itself blocks rather than dropping.
var ErrSinkClosed = errors.New("sink: closed")

// WriteJSON enqueues one record for the next flush tick. The send blocks
// under channel backpressure rather than dropping, so a burst of alerts
// is never silently lost; it returns ErrSinkClosed if the sink has
// already been shut down.
func (s *Sink) WriteJSON(v interface{}) error {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.queue <- v:
		return nil
	default:
		s.logger.Debug("sink: queue full, applying backpressure")
	}

	s.queue <- v
	return nil
}

// Close stops the flush loop and flushes any remaining buffered records.
func (s *Sink) Close() error {
	s.closedMu.Lock()
	s.closed = true
	s.closedMu.Unlock()

	close(s.queue)
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		_ = s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Sink) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-s.queue:
			if !ok {
				return
			}
			s.append(rec)
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *Sink) append(rec interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.RotateDaily {
		if err := s.rotateIfNeeded(); err != nil {
			s.logger.WithError(err).Error("sink: rotate failed")
			return
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.WithError(err).Error("sink: marshal failed")
		return
	}

	if _, err := s.writer.Write(data); err != nil {
		s.logger.WithError(err).Error("sink: write failed")
		return
	}
	_ = s.writer.WriteByte('\n')
}

func (s *Sink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			s.logger.WithError(err).Error("sink: flush failed")
		}
	}
}

// openCurrent opens the sink's file for today (UTC), creating parent
// directories as needed. Callers must not hold s.mu.
func (s *Sink) openCurrent() error {
	path := s.pathFor(time.Now().UTC())

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sink directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open sink file %s: %w", path, err)
	}

	s.mu.Lock()
	s.file = f
	s.writer = bufio.NewWriter(f)
	s.currentDate = dateSuffix(time.Now().UTC())
	s.mu.Unlock()

	return nil
}

// rotateIfNeeded swaps to a new dated file when the UTC date has
// advanced. Callers must hold s.mu.
func (s *Sink) rotateIfNeeded() error {
	today := dateSuffix(time.Now().UTC())
	if today == s.currentDate {
		return nil
	}

	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush before rotate: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close before rotate: %w", err)
	}

	path := s.pathFor(time.Now().UTC())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open rotated sink file %s: %w", path, err)
	}

	s.file = f
	s.writer = bufio.NewWriter(f)
	s.currentDate = today
	return nil
}

func (s *Sink) pathFor(t time.Time) string {
	if !s.cfg.RotateDaily {
		return s.cfg.Path
	}
	ext := filepath.Ext(s.cfg.Path)
	base := s.cfg.Path[:len(s.cfg.Path)-len(ext)]
	return fmt.Sprintf("%s-%s%s", base, dateSuffix(t), ext)
}

func dateSuffix(t time.Time) string {
	return t.Format("2006-01-02")
}
