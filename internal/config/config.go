// Package config loads pipeline configuration from environment
// variables, in the teacher's validate-then-construct style
// (this file previously housed the teacher's Load/mustEnv family almost
// unchanged), extended with defaulted helpers since most of this
// pipeline's settings have a reasonable default rather than being a hard
// requirement.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// Config holds every environment-driven setting for the sentinel
// process, covering every option spec.md §6 enumerates.
type Config struct {
	RPCUrl string
	WSUrl  string

	Programs []ProgramConfig

	OutDir          string
	QuoteMints      []string
	ProbeAmount     uint64
	PeriodicResync  time.Duration
	RouteSupportsMemo bool

	HTTPTimeout          time.Duration
	MaxRetries           int
	RetryBackoff         time.Duration
	RPCRequestsPerSecond float64

	RedisAddr string

	SafetyCacheSize int
	DedupCacheSize  int
	DedupTTL        time.Duration

	BusSubscriberCapacity int

	SinkFlushInterval time.Duration
	SinkChannelDepth  int
	SinkRotateDaily   bool

	Hype   HypeConfig
	Policy alert.Policy

	LogLevel string
}

// HypeConfig controls the hype aggregator's bucket width, rolling
// windows, and score weights (spec.md §6 "Hype options").
type HypeConfig struct {
	BucketSecs int
	Window60s  int
	Window300s int
	WSwaps     float64
	WUnique    float64
	WBsr       float64
	WLp        float64
}

// ProgramConfig names one on-chain program the watcher tracks and which
// decoder owns it.
type ProgramConfig struct {
	Name      string
	ProgramID string
	Dex       alert.Dex // OrcaWhirlpools | RaydiumClmm | RaydiumCpmm
}

// minPeriodicResync is the Non-goal-preserving floor: periodic resync is
// the sole recovery mechanism for a dropped subscription, so it can never
// be configured faster than this (spec.md §6: "clamped to >= 5").
const minPeriodicResync = 5 * time.Minute

// Load reads configuration from the process environment, loading a .env
// file first if present (ignored if absent, mirroring the teacher's
// local-dev convenience without making it load-bearing in production).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RPCUrl: mustEnv("SOLANA_RPC_URL"),
		WSUrl:  mustEnv("SOLANA_WS_URL"),

		OutDir:            stringOrDefault("OUT_DIR", "./out"),
		QuoteMints:        splitNonEmpty(stringOrDefault("QUOTE_MINTS", defaultQuoteMints)),
		ProbeAmount:       uint64OrDefault("PROBE_AMOUNT", 1_000_000),
		PeriodicResync:    clampResync(durationOrDefault("PERIODIC_RESYNC", 30*time.Minute)),
		RouteSupportsMemo: boolOrDefault("ROUTE_SUPPORTS_MEMO", false),

		HTTPTimeout:          durationOrDefault("HTTP_TIMEOUT", 10*time.Second),
		MaxRetries:           intOrDefault("MAX_RETRIES", 5),
		RetryBackoff:         durationOrDefault("RETRY_BACKOFF", 200*time.Millisecond),
		RPCRequestsPerSecond: floatOrDefault("RPC_REQUESTS_PER_SECOND", 20),

		RedisAddr: stringOrDefault("REDIS_ADDR", ""),

		SafetyCacheSize: intOrDefault("SAFETY_CACHE_SIZE", 20_000),
		DedupCacheSize:  intOrDefault("DEDUP_CACHE_SIZE", 10_000),
		DedupTTL:        durationOrDefault("DEDUP_TTL", 5*time.Minute),

		BusSubscriberCapacity: intOrDefault("BUS_SUBSCRIBER_CAPACITY", 1024),

		SinkFlushInterval: durationOrDefault("SINK_FLUSH_INTERVAL", 700*time.Millisecond),
		SinkChannelDepth:  intOrDefault("SINK_CHANNEL_DEPTH", 4096),
		SinkRotateDaily:   boolOrDefault("SINK_ROTATE_DAILY", true),

		Hype: HypeConfig{
			BucketSecs: intOrDefault("HYPE_BUCKET_SECS", 10),
			Window60s:  intOrDefault("HYPE_WINDOW_60S", 60),
			Window300s: intOrDefault("HYPE_WINDOW_300S", 300),
			WSwaps:     floatOrDefault("HYPE_W_SWAPS", 0.35),
			WUnique:    floatOrDefault("HYPE_W_UNIQUE", 0.35),
			WBsr:       floatOrDefault("HYPE_W_BSR", 0.20),
			WLp:        floatOrDefault("HYPE_W_LP", 0.10),
		},

		Policy: policyFromEnv(),

		LogLevel: stringOrDefault("LOG_LEVEL", "info"),
	}

	programs, err := parsePrograms(stringOrDefault("PROGRAMS", defaultProgramsSpec))
	if err != nil {
		return nil, fmt.Errorf("parse PROGRAMS: %w", err)
	}
	cfg.Programs = programs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultQuoteMints ships the canonical Solana stablecoin/SOL mints as a
// sane out-of-the-box TVL reference set.
const defaultQuoteMints = "So11111111111111111111111111111111111111112," +
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// defaultProgramsSpec tracks the two canonical Orca/Raydium program
// addresses the pipeline ships with out of the box.
const defaultProgramsSpec = "orca=whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc:OrcaWhirlpools," +
	"raydium-clmm=CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK:RaydiumClmm," +
	"raydium-cpmm=CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C:RaydiumCpmm"

// parsePrograms parses "name=programId:dex,name=programId:dex,...".
func parsePrograms(spec string) ([]ProgramConfig, error) {
	var out []ProgramConfig
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		nameAndRest := strings.SplitN(entry, "=", 2)
		if len(nameAndRest) != 2 {
			return nil, fmt.Errorf("malformed program entry %q: want name=programId:dex", entry)
		}
		idAndDex := strings.SplitN(nameAndRest[1], ":", 2)
		if len(idAndDex) != 2 {
			return nil, fmt.Errorf("malformed program entry %q: want name=programId:dex", entry)
		}
		out = append(out, ProgramConfig{
			Name:      nameAndRest[0],
			ProgramID: idAndDex[0],
			Dex:       alert.Dex(idAndDex[1]),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no programs configured")
	}
	return out, nil
}

// policyFromEnv builds the token-safety Policy from its individual
// boolean/threshold environment options (spec.md §6 "Policy options"),
// layered over alert.DefaultPolicy so unset options keep their documented
// default.
func policyFromEnv() alert.Policy {
	p := alert.DefaultPolicy()

	p.RequireFreezeAuthorityNone = boolOrDefault("POLICY_REQUIRE_FREEZE_AUTHORITY_NONE", p.RequireFreezeAuthorityNone)
	p.ForbidNonTransferable = boolOrDefault("POLICY_FORBID_NON_TRANSFERABLE", p.ForbidNonTransferable)
	p.ForbidDefaultFrozen = boolOrDefault("POLICY_FORBID_DEFAULT_FROZEN", p.ForbidDefaultFrozen)
	p.ForbidPermanentDelegate = boolOrDefault("POLICY_FORBID_PERMANENT_DELEGATE", p.ForbidPermanentDelegate)
	p.ForbidTransferHook = boolOrDefault("POLICY_FORBID_TRANSFER_HOOK", p.ForbidTransferHook)
	p.ForbidConfidential = boolOrDefault("POLICY_FORBID_CONFIDENTIAL", p.ForbidConfidential)
	p.ForbidMemoRequiredIfRouteNoMemo = boolOrDefault("POLICY_FORBID_MEMO_REQUIRED_IF_ROUTE_NO_MEMO", p.ForbidMemoRequiredIfRouteNoMemo)
	p.ForbidMintCloseAuthority = boolOrDefault("POLICY_FORBID_MINT_CLOSE_AUTHORITY", p.ForbidMintCloseAuthority)
	p.AllowMintAuthority = boolOrDefault("POLICY_ALLOW_MINT_AUTHORITY", p.AllowMintAuthority)
	p.MaxFeeBps = uint16(intOrDefault("POLICY_MAX_FEE_BPS", int(p.MaxFeeBps)))

	if v := strings.TrimSpace(os.Getenv("POLICY_MAX_FEE_ABS_UNITS")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			panic(fmt.Sprintf("invalid uint for POLICY_MAX_FEE_ABS_UNITS: %v (got: %q)", err, v))
		}
		p.MaxFeeAbsUnits = &n
	}

	return p
}

// Validate enforces the invariants Load's defaults alone cannot, such as
// the resync floor.
func (c *Config) Validate() error {
	if c.PeriodicResync < minPeriodicResync {
		return fmt.Errorf("periodic resync interval %s is below the minimum of %s", c.PeriodicResync, minPeriodicResync)
	}
	return nil
}

// clampResync enforces the >= 5 minute floor spec.md §6 requires,
// clamping up rather than rejecting so a too-small configured value
// degrades gracefully instead of failing startup.
func clampResync(d time.Duration) time.Duration {
	if d < minPeriodicResync {
		return minPeriodicResync
	}
	return d
}

func mustEnv(key string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		panic(fmt.Sprintf("missing required environment variable: %s", key))
	}
	return val
}

func stringOrDefault(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intOrDefault(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		panic(fmt.Sprintf("invalid integer for %s: %v (got: %q)", key, err, val))
	}
	return n
}

func uint64OrDefault(key string, def uint64) uint64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid unsigned integer for %s: %v (got: %q)", key, err, val))
	}
	return n
}

func floatOrDefault(key string, def float64) float64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid float for %s: %v (got: %q)", key, err, val))
	}
	return f
}

func durationOrDefault(key string, def time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		panic(fmt.Sprintf("invalid duration for %s: %v (got: %q). Examples: 30s, 5m, 1h", key, err, val))
	}
	return d
}

func boolOrDefault(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		panic(fmt.Sprintf("invalid boolean for %s: %v (got: %q). Must be: true, false, 1, 0, t, f", key, err, val))
	}
	return b
}
