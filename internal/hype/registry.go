package hype

import (
	"sync"
	"time"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// Registry owns one Tracker per key, created on first use. Keys are
// alert.PoolId values, but per-pool granularity is only as fine as the
// source event lets it be: program-level ProgramLog events (spec.md §3)
// carry no pool account, only the program id, so watcher.Watcher ingests
// them under the program-level key PoolId{Program: program} (empty
// Account). Pipeline.process (internal/enrich) snapshots under that same
// program-level key for a given pool, which is a deliberate, documented
// relaxation of "per-pool" to "per-program" hype for the log-derived
// signal — see DESIGN.md's internal/hype entry.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	trackers map[alert.PoolId]*Tracker
}

// NewRegistry constructs an empty Registry using cfg for every Tracker it
// creates.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg.orDefaults(), trackers: make(map[alert.PoolId]*Tracker)}
}

func (r *Registry) tracker(id alert.PoolId) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trackers[id]
	if !ok {
		t = NewTracker(r.cfg)
		r.trackers[id] = t
	}
	return t
}

// IngestLog classifies and records one transaction's log lines against
// id's tracker (spec.md §4.F Ingest). trader is the per-transaction
// identity used for the unique-traders count; for program-level log
// events without a parsed trader address, callers pass the transaction
// signature as a best-effort uniqueness proxy.
func (r *Registry) IngestLog(id alert.PoolId, tsMs int64, logs []string, trader string) {
	r.tracker(id).Ingest(tsMs, logs, trader)
}

// Snapshot returns id's current hype snapshot, or a zero-value snapshot
// if id has no recorded tracker yet.
func (r *Registry) Snapshot(id alert.PoolId, now time.Time) alert.HypeSnapshot {
	r.mu.Lock()
	t, ok := r.trackers[id]
	r.mu.Unlock()

	if !ok {
		return alert.HypeSnapshot{}
	}
	return t.Snapshot(now)
}

// Forget drops id's tracker; a later IngestLog for id starts a fresh one.
func (r *Registry) Forget(id alert.PoolId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, id)
}
