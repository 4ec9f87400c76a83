// Package publish defines the outbound delivery contract for enriched
// alerts. It intentionally contains no concrete Telegram, Discord, or
// WebSocket client: those integrations live outside this pipeline and
// are reached only through this interface, matching spec.md's
// "outbound publisher integrations" Non-goal.
package publish

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// Publisher delivers a finished EnrichedPoolAlert to some external
// collaborator (webhook, message queue, broadcast socket). Implementers
// own their own transport and retry semantics beyond what Dispatcher
// provides here.
type Publisher interface {
	SendAlert(ctx context.Context, a alert.EnrichedPoolAlert) error
}

// Dispatcher wraps a Publisher with the pipeline's linear backoff retry
// policy (300ms * attempt, up to maxAttempts), so a flaky downstream
// endpoint degrades an individual alert delivery rather than the
// enrichment pipeline itself.
type Dispatcher struct {
	publisher   Publisher
	maxAttempts int
	logger      *logrus.Logger
}

// DefaultMaxAttempts is the retry ceiling for a single alert delivery.
const DefaultMaxAttempts = 5

// NewDispatcher wraps publisher. maxAttempts <= 0 falls back to
// DefaultMaxAttempts.
func NewDispatcher(publisher Publisher, maxAttempts int, logger *logrus.Logger) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{publisher: publisher, maxAttempts: maxAttempts, logger: logger}
}

// Dispatch attempts delivery with linear backoff, giving up (and
// returning the last error) after maxAttempts.
func (d *Dispatcher) Dispatch(ctx context.Context, a alert.EnrichedPoolAlert) error {
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(300*attempt) * time.Millisecond):
			}
		}

		if err := d.publisher.SendAlert(ctx, a); err != nil {
			lastErr = err
			d.logger.WithError(err).WithFields(logrus.Fields{
				"pool":    a.Id.String(),
				"attempt": attempt,
			}).Warn("publish attempt failed")
			continue
		}
		return nil
	}
	return lastErr
}
