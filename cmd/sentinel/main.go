// Command sentinel is the pipeline's process entry point: it loads
// configuration, wires the inventory/bus/decoders, starts one Watcher per
// configured DEX program, and runs the enrichment pipeline against the
// shared event bus until it receives SIGINT/SIGTERM. Signal handling and
// logrus setup are grounded on cmd/api/main.go's graceful-shutdown shape;
// construction order (dependencies built bottom-up, then wired top-down)
// mirrors cmd/indexer/main.go's Indexer/provider-switch wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pool-sentinel/internal/bus"
	"github.com/aman-zulfiqar/pool-sentinel/internal/config"
	"github.com/aman-zulfiqar/pool-sentinel/internal/decode"
	"github.com/aman-zulfiqar/pool-sentinel/internal/enrich"
	"github.com/aman-zulfiqar/pool-sentinel/internal/flags"
	"github.com/aman-zulfiqar/pool-sentinel/internal/hype"
	"github.com/aman-zulfiqar/pool-sentinel/internal/inventory"
	"github.com/aman-zulfiqar/pool-sentinel/internal/liquidity"
	"github.com/aman-zulfiqar/pool-sentinel/internal/publish"
	"github.com/aman-zulfiqar/pool-sentinel/internal/rpcx"
	"github.com/aman-zulfiqar/pool-sentinel/internal/safety"
	"github.com/aman-zulfiqar/pool-sentinel/internal/sink"
	"github.com/aman-zulfiqar/pool-sentinel/internal/watcher"
	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(parseLevelOrInfo(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	rpcClient := rpcx.New(rpcx.Config{
		BaseURL:           cfg.RPCUrl,
		Timeout:           cfg.HTTPTimeout,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		RequestsPerSecond: cfg.RPCRequestsPerSecond,
		Logger:            logger,
	})

	inv := inventory.New()
	b := bus.New(cfg.BusSubscriberCapacity, logger)

	analyzer, err := safety.New(rpcClient, cfg.SafetyCacheSize, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to construct token safety analyzer")
	}

	configTable := decode.NewConfigTable()
	orcaDecoder := &decode.Orca{Introspector: analyzer}
	raydiumDecoder := &decode.Raydium{Introspector: analyzer, Configs: configTable}

	hypeRegistry := hype.NewRegistry(hype.Config{
		BucketWidth: time.Duration(cfg.Hype.BucketSecs) * time.Second,
		Window60s:   time.Duration(cfg.Hype.Window60s) * time.Second,
		Window300s:  time.Duration(cfg.Hype.Window300s) * time.Second,
		Weights: hype.Weights{
			Swaps:  cfg.Hype.WSwaps,
			Unique: cfg.Hype.WUnique,
			Bsr:    cfg.Hype.WBsr,
			Lp:     cfg.Hype.WLp,
		},
	})

	var pauseGate *flags.PauseGate
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if pingErr := rclient.Ping(ctx).Err(); pingErr != nil {
			logger.WithError(pingErr).Warn("redis unavailable, watcher pause flags disabled")
		} else if pg, pgErr := flags.NewPauseGate(rclient); pgErr != nil {
			logger.WithError(pgErr).Warn("failed to construct pause gate, watcher pause flags disabled")
		} else {
			pauseGate = pg
		}
	}

	alertsSink, err := sink.New(sink.Config{
		Path:          streamPath(cfg.OutDir, "alerts_enriched", cfg.SinkRotateDaily),
		FlushInterval: cfg.SinkFlushInterval,
		ChannelDepth:  cfg.SinkChannelDepth,
		RotateDaily:   cfg.SinkRotateDaily,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to construct alerts sink")
	}
	defer alertsSink.Close()

	errsSink, err := sink.New(sink.Config{
		Path:          streamPath(cfg.OutDir, "errors", cfg.SinkRotateDaily),
		FlushInterval: cfg.SinkFlushInterval,
		ChannelDepth:  cfg.SinkChannelDepth,
		RotateDaily:   cfg.SinkRotateDaily,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to construct errors sink")
	}
	defer errsSink.Close()

	dispatcher := publish.NewDispatcher(noopPublisher{}, publish.DefaultMaxAttempts, logger)

	pipeline, err := enrich.New(enrich.Config{
		DedupCacheSize:    cfg.DedupCacheSize,
		DedupTTL:          cfg.DedupTTL,
		QuoteMints:        cfg.QuoteMints,
		Policy:            cfg.Policy,
		RouteSupportsMemo: cfg.RouteSupportsMemo,
		Logger:            logger,
	}, analyzer, configuredVaultLookup{}, rpcClient, hypeRegistry, alertsSink, errsSink, dispatcher, nil)
	if err != nil {
		logger.WithError(err).Fatal("failed to construct enrichment pipeline")
	}

	var wg sync.WaitGroup

	for _, pc := range cfg.Programs {
		if pauseGate.Enabled(ctx, pc.Name) {
			logger.WithField("program", pc.Name).Info("watcher paused via operational flag, skipping")
			continue
		}

		w := watcher.New(
			watcher.Program{Name: pc.Name, ProgramID: pc.ProgramID, Dex: pc.Dex},
			rpcClient, inv, b, hypeRegistry, orcaDecoder, raydiumDecoder,
			watcher.Config{WSUrl: cfg.WSUrl, PeriodicResync: cfg.PeriodicResync, Logger: logger},
		)

		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			logger.WithField("program", name).Info("watcher starting")
			w.Run(ctx)
			logger.WithField("program", name).Info("watcher stopped")
		}(pc.Name)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Run(ctx, b)
	}()

	logger.WithField("programs", len(cfg.Programs)).Info("pool-sentinel running, press Ctrl+C to stop")

	<-sigCh
	logger.Info("shutdown signal received, stopping pipeline")
	cancel()
	wg.Wait()
}

func parseLevelOrInfo(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func streamPath(outDir, stream string, _ bool) string {
	// sink.Sink inserts its own "-YYYY-MM-DD" suffix before the
	// extension when RotateDaily is set, so the base path must already
	// carry ".jsonl" per spec.md §6's "<stream>.jsonl" / "<stream>-
	// YYYY-MM-DD.jsonl" file-name convention.
	return outDir + "/" + stream + ".jsonl"
}

// noopPublisher is the default outbound delivery when no Telegram/
// WebSocket/HTTP publisher integration is configured. Every send "fails"
// so every alert is recorded to the errors stream with a clear reason,
// per spec.md §6's "the core does not care whether it is a messaging
// client... or an HTTP endpoint" — operators wire a real Publisher by
// replacing this value.
type noopPublisher struct{}

func (noopPublisher) SendAlert(ctx context.Context, a alert.EnrichedPoolAlert) error {
	return fmt.Errorf("no outbound publisher configured")
}

// configuredVaultLookup resolves vault accounts and CLMM sqrt-price for a
// pool. spec.md §6's bit-exact layout table (§6) specifies only
// tick_spacing/fee_rate/mint offsets for each DEX, not vault-account
// offsets, so internal/decode's decoders do not extract them; quick
// liquidity is consequently best-effort-unavailable for every pool until
// an operator supplies a Lookup with real vault addresses, e.g. sourced
// from an out-of-band pool registry. Returning false here is the
// documented "no vaults known" branch of Pipeline.process in
// internal/enrich, which already treats that as an absent, not failed,
// QuickLiq per spec.md §4.H/§7.
type configuredVaultLookup struct{}

func (configuredVaultLookup) Lookup(ctx context.Context, info alert.PoolInfo) (liquidity.PoolInput, bool) {
	return liquidity.PoolInput{}, false
}
