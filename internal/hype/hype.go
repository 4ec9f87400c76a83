// Package hype maintains a rolling, bucketed window of recent swap and
// liquidity-provision activity per pool, producing a short-term "hype"
// snapshot the enrichment stage attaches to alerts. The eviction strategy
// is the teacher's DailyLimitTracker.cleanup() pattern (rebuild-and-filter
// under lock), adapted from a flat record list to fixed-width time
// buckets per spec.md §4.F, scaled down from a 24-hour to a multi-minute
// window.
package hype

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// Weights controls how the four hype components combine into the final
// 0-100 score (spec.md §6 "Hype options": w_swaps, w_unique, w_bsr, w_lp).
type Weights struct {
	Swaps  float64
	Unique float64
	Bsr    float64
	Lp     float64
}

// DefaultWeights mirrors spec.md's stated defaults.
var DefaultWeights = Weights{Swaps: 0.35, Unique: 0.35, Bsr: 0.20, Lp: 0.10}

// Config controls a Tracker's bucket width and rolling-window horizons.
type Config struct {
	BucketWidth time.Duration
	Window60s   time.Duration
	Window300s  time.Duration
	Weights     Weights
}

// DefaultConfig mirrors spec.md §6's defaults (bucket_secs=10,
// window60s=60, window300s=300).
var DefaultConfig = Config{
	BucketWidth: 10 * time.Second,
	Window60s:   60 * time.Second,
	Window300s:  300 * time.Second,
	Weights:     DefaultWeights,
}

func (c Config) orDefaults() Config {
	if c.BucketWidth <= 0 {
		c.BucketWidth = DefaultConfig.BucketWidth
	}
	if c.Window60s <= 0 {
		c.Window60s = DefaultConfig.Window60s
	}
	if c.Window300s <= 0 {
		c.Window300s = DefaultConfig.Window300s
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultConfig.Weights
	}
	return c
}

// bucket is one fixed-width time slot of rolling counters, per spec.md
// §4.F: "Each bucket counts: swaps, buys, sells, lp_adds, lp_rems, and a
// set of unique trader addresses."
type bucket struct {
	ts      int64 // floor(ts_ms / bucket_width) * bucket_width
	swaps   int
	buys    int
	sells   int
	lpAdds  int
	lpRems  int
	uniques map[string]struct{}
}

// Tracker accumulates bucketed swap and LP activity for a single pool.
type Tracker struct {
	mu      sync.RWMutex
	cfg     Config
	buckets []*bucket
}

// NewTracker constructs an empty Tracker using cfg (falling back to
// DefaultConfig's fields for any zero value).
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg.orDefaults()}
}

// classifyLine applies spec.md §4.F's case-insensitive classification
// order: "swap" -> swap; "increase liquidity"/"add liquidity" -> lp_add;
// "decrease liquidity"/"remove liquidity" -> lp_rem; "buy " -> buy;
// "sell " -> sell.
func classifyLine(line string) logKind {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "swap"):
		return kindSwap
	case strings.Contains(lower, "increase liquidity"), strings.Contains(lower, "add liquidity"):
		return kindLpAdd
	case strings.Contains(lower, "decrease liquidity"), strings.Contains(lower, "remove liquidity"):
		return kindLpRem
	case strings.Contains(lower, "buy "):
		return kindBuy
	case strings.Contains(lower, "sell "):
		return kindSell
	default:
		return kindNone
	}
}

type logKind int

const (
	kindNone logKind = iota
	kindSwap
	kindBuy
	kindSell
	kindLpAdd
	kindLpRem
)

// Ingest classifies one transaction's log lines and records the matching
// observations into the bucket for tsMs, per spec.md §4.F Ingest:
//  1. bucket_ts = floor(ts_ms / bucket_width) * bucket_width.
//  2. Drop front buckets older than 300s relative to bucket_ts.
//  3. If the back bucket's timestamp != bucket_ts, push a new bucket.
//  4. Classify the whole log set into five independent booleans (a
//     transaction is at most one swap, one buy, one sell, one lp-add, one
//     lp-rem) and increment each matching counter by at most 1; record
//     trader in uniques if non-empty.
func (t *Tracker) Ingest(tsMs int64, logs []string, trader string) {
	widthMs := t.cfg.BucketWidth.Milliseconds()
	if widthMs <= 0 {
		widthMs = 1
	}
	bucketTs := (tsMs / widthMs) * widthMs

	isSwap, isBuy, isSell, isLpAdd, isLpRem := classify(logs)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictBefore(bucketTs - t.cfg.Window300s.Milliseconds())

	if len(t.buckets) == 0 || t.buckets[len(t.buckets)-1].ts != bucketTs {
		t.buckets = append(t.buckets, &bucket{ts: bucketTs, uniques: make(map[string]struct{})})
	}
	b := t.buckets[len(t.buckets)-1]

	if isSwap {
		b.swaps++
	}
	if isBuy {
		b.buys++
	}
	if isSell {
		b.sells++
	}
	if isLpAdd {
		b.lpAdds++
	}
	if isLpRem {
		b.lpRems++
	}
	if (isSwap || isBuy || isSell || isLpAdd || isLpRem) && trader != "" {
		b.uniques[trader] = struct{}{}
	}
}

// classify scans every line of one transaction's logs and reports which of
// the five activity kinds it contains, each true at most once regardless
// of how many lines match.
func classify(logs []string) (isSwap, isBuy, isSell, isLpAdd, isLpRem bool) {
	for _, line := range logs {
		switch classifyLine(line) {
		case kindSwap:
			isSwap = true
		case kindBuy:
			isBuy = true
		case kindSell:
			isSell = true
		case kindLpAdd:
			isLpAdd = true
		case kindLpRem:
			isLpRem = true
		}
	}
	return
}

// evictBefore drops every front bucket older than cutoffMs. Callers must
// hold t.mu.
func (t *Tracker) evictBefore(cutoffMs int64) {
	i := 0
	for i < len(t.buckets) && t.buckets[i].ts < cutoffMs {
		i++
	}
	if i > 0 {
		t.buckets = t.buckets[i:]
	}
}

// Snapshot computes the current HypeSnapshot as of now, per spec.md
// §4.F: walk buckets newest to oldest, accumulate 60s counters and 300s
// lp_net, stopping once a bucket falls outside the 300s horizon.
func (t *Tracker) Snapshot(now time.Time) alert.HypeSnapshot {
	nowMs := now.UnixMilli()
	window60 := t.cfg.Window60s.Milliseconds()
	window300 := t.cfg.Window300s.Milliseconds()

	t.mu.RLock()
	defer t.mu.RUnlock()

	var swaps, buys, sells int
	var lpNet int64
	traders := make(map[string]struct{})

	for i := len(t.buckets) - 1; i >= 0; i-- {
		b := t.buckets[i]
		age := nowMs - b.ts
		if age > window300 {
			break
		}
		lpNet += int64(b.lpAdds - b.lpRems)
		if age <= window60 {
			swaps += b.swaps
			buys += b.buys
			sells += b.sells
			for tr := range b.uniques {
				traders[tr] = struct{}{}
			}
		}
	}

	// spec.md §4.F: buy_sell_ratio = sells_60s == 0 ? buys_60s :
	// buys_60s / sells_60s. When both are zero this yields 0, not 1 —
	// deliberately asymmetric with "no data" so a quiet pool scores 0.
	ratio := float64(buys)
	if sells > 0 {
		ratio = float64(buys) / float64(sells)
	}

	snap := alert.HypeSnapshot{
		Swaps60s:         swaps + buys + sells,
		BuySellRatio:     ratio,
		UniqueTraders60s: len(traders),
		LpNet300s:        lpNet,
	}
	snap.Score = score(t.cfg.Weights, snap)
	return snap
}

// score implements spec.md §4.F's weighted formula:
//
//	score = round(clamp01(
//	    w_s * min(1, swaps/50) +
//	    w_u * min(1, unique/30) +
//	    w_b * clamp01((bsr-0.5)/2.5) +
//	    w_l * clamp01(lp_net/20),
//	) * 100)
func score(w Weights, s alert.HypeSnapshot) uint8 {
	swapsComponent := math.Min(1, float64(s.Swaps60s)/50)
	uniqueComponent := math.Min(1, float64(s.UniqueTraders60s)/30)
	bsrComponent := clamp01((s.BuySellRatio - 0.5) / 2.5)
	lpComponent := clamp01(float64(s.LpNet300s) / 20)

	combined := w.Swaps*swapsComponent + w.Unique*uniqueComponent + w.Bsr*bsrComponent + w.Lp*lpComponent
	return uint8(math.Round(clamp01(combined) * 100))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
