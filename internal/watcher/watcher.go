// Package watcher runs the per-program snapshot/subscribe/resync state
// machine: it walks a program's accounts via getProgramAccounts, decodes
// them with internal/decode, merges the result into internal/inventory,
// and publishes internal/bus events for the rest of the pipeline to
// consume. Once a snapshot finishes it opens a live programSubscribe +
// logsSubscribe feed over internal/solanaws, and a periodic resync timer
// (grounded on the teacher's stream.RPCPoller.Poll ticker loop) re-walks
// the program so an account change missed by a dropped subscription is
// never permanently lost.
package watcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pool-sentinel/internal/bus"
	"github.com/aman-zulfiqar/pool-sentinel/internal/decode"
	"github.com/aman-zulfiqar/pool-sentinel/internal/hype"
	"github.com/aman-zulfiqar/pool-sentinel/internal/inventory"
	"github.com/aman-zulfiqar/pool-sentinel/internal/rpcx"
	"github.com/aman-zulfiqar/pool-sentinel/internal/solanaws"
	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// Decoder is the per-program capability a Watcher needs: turn a raw
// account's bytes into a PoolInfo, or (nil, nil) if the account does not
// decode as a pool (e.g. a Raydium config record).
type Decoder interface {
	Decode(ctx context.Context, raw []byte) (*alert.PoolInfo, error)
}

// orcaDecoder adapts decode.Orca to the Decoder interface. The account
// address argument decode.Orca.Decode needs is irrelevant here: callers
// overwrite PoolInfo.Id with the real (program, account) pair once the
// raw account's source pubkey is known, so an empty placeholder is passed
// through.
type orcaDecoder struct {
	d       *decode.Orca
	program string
}

func (o orcaDecoder) Decode(ctx context.Context, raw []byte) (*alert.PoolInfo, error) {
	return o.d.Decode(ctx, o.program, "", raw)
}

// raydiumDecoder adapts decode.Raydium to the Decoder interface, with the
// same placeholder-account convention as orcaDecoder.
type raydiumDecoder struct {
	d       *decode.Raydium
	dex     alert.Dex
	program string
}

func (r raydiumDecoder) Decode(ctx context.Context, raw []byte) (*alert.PoolInfo, error) {
	return r.d.Decode(ctx, r.dex, r.program, "", raw)
}

// Program names one on-chain program the watcher tracks.
type Program struct {
	Name      string
	ProgramID string
	Dex       alert.Dex
}

// Config controls one Watcher's behavior.
type Config struct {
	WSUrl          string
	PeriodicResync time.Duration
	Logger         *logrus.Logger
}

// Watcher drives the snapshot/subscribe/resync cycle for a single
// configured program.
type Watcher struct {
	program Program
	rpc     *rpcx.Client
	inv     *inventory.Inventory
	bus     *bus.Bus
	hype    *hype.Registry
	orca    *decode.Orca
	raydium *decode.Raydium
	cfg     Config
	logger  *logrus.Logger
}

// New constructs a Watcher for one configured program. orca is used when
// program.Dex == alert.OrcaWhirlpools; raydium (which also owns the
// shared ConfigTable) otherwise.
func New(program Program, rpcClient *rpcx.Client, inv *inventory.Inventory, b *bus.Bus, hypeRegistry *hype.Registry, orcaDec *decode.Orca, raydiumDec *decode.Raydium, cfg Config) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PeriodicResync <= 0 {
		cfg.PeriodicResync = 30 * time.Minute
	}
	return &Watcher{
		program: program,
		rpc:     rpcClient,
		inv:     inv,
		bus:     b,
		hype:    hypeRegistry,
		orca:    orcaDec,
		raydium: raydiumDec,
		cfg:     cfg,
		logger:  cfg.Logger,
	}
}

func (w *Watcher) decoder() Decoder {
	if w.program.Dex == alert.OrcaWhirlpools {
		return orcaDecoder{d: w.orca, program: w.program.ProgramID}
	}
	return raydiumDecoder{d: w.raydium, dex: w.program.Dex, program: w.program.ProgramID}
}

// Run drives the watcher until ctx is cancelled: an initial snapshot, a
// periodic resync loop, and (best-effort, restarted on drop) a live
// subscription feed. It never returns until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	log := w.logger.WithFields(logrus.Fields{"program": w.program.Name, "program_id": w.program.ProgramID})

	w.snapshot(ctx)

	go w.subscribeLoop(ctx, log)

	ticker := time.NewTicker(w.cfg.PeriodicResync)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.bus.Publish(alert.PoolEvent{Kind: alert.EventResyncTick, Program: w.program.ProgramID})
			w.snapshot(ctx)
		}
	}
}

// snapshot performs one full getProgramAccounts walk, decoding every
// account, merging new/changed pools into the inventory, and atomically
// discarding pools that disappeared since the previous snapshot.
func (w *Watcher) snapshot(ctx context.Context) {
	log := w.logger.WithFields(logrus.Fields{"program": w.program.Name, "program_id": w.program.ProgramID})

	accounts, err := w.rpc.GetProgramAccountsProcessed(ctx, w.program.ProgramID)
	if err != nil {
		log.WithError(err).Error("watcher: snapshot getProgramAccounts failed")
		return
	}

	w.bus.Publish(alert.PoolEvent{Kind: alert.EventSnapshotStarted, Program: w.program.ProgramID})

	dec := w.decoder()
	seen := make([]alert.PoolInfo, 0, len(accounts))

	for _, acc := range accounts {
		raw, err := acc.Account.Decode()
		if err != nil {
			log.WithError(err).WithField("account", acc.Pubkey).Debug("watcher: account decode (base64) failed")
			continue
		}

		info, err := dec.Decode(ctx, raw)
		if err != nil {
			log.WithError(err).WithField("account", acc.Pubkey).Debug("watcher: account decode failed")
			continue
		}
		if info == nil {
			continue
		}
		info.Id = alert.PoolId{Program: w.program.ProgramID, Account: acc.Pubkey}
		seen = append(seen, *info)

		isNew := w.inv.Upsert(*info)
		kind := alert.EventAccountChanged
		if isNew {
			kind = alert.EventAccountNew
		}
		w.bus.Publish(alert.PoolEvent{Kind: kind, Info: info, DataLen: len(raw)})
	}

	w.inv.ReplaceProgram(w.program.ProgramID, seen)
	w.bus.Publish(alert.PoolEvent{Kind: alert.EventSnapshotFinished, Program: w.program.ProgramID, Count: len(seen)})
}

// subscribeLoop dials the live websocket feed and blocks until it drops,
// then waits one PeriodicResync interval before redialing. There is no
// shorter retry or backoff: an account change missed while the feed is
// down is picked up by the periodic resync snapshot.
func (w *Watcher) subscribeLoop(ctx context.Context, log *logrus.Entry) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := w.subscribeOnce(ctx, log); err != nil {
			log.WithError(err).Warn("watcher: live subscription ended, will retry on next resync interval")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PeriodicResync):
		}
	}
}

func (w *Watcher) subscribeOnce(ctx context.Context, log *logrus.Entry) error {
	client, err := solanaws.Dial(ctx, w.cfg.WSUrl, w.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SubscribeProgram(w.program.ProgramID); err != nil {
		return err
	}
	if err := client.SubscribeLogs(w.program.ProgramID); err != nil {
		return err
	}

	dec := w.decoder()

	handlers := solanaws.Handlers{
		OnProgram: func(program string, n solanaws.ProgramNotification) {
			raw, err := solanaws.DecodeAccountData(n.Account)
			if err != nil || raw == nil {
				return
			}
			info, err := dec.Decode(ctx, raw)
			if err != nil || info == nil {
				return
			}
			info.Id = alert.PoolId{Program: program, Account: n.Pubkey}

			isNew := w.inv.Upsert(*info)
			kind := alert.EventAccountChanged
			if isNew {
				kind = alert.EventAccountNew
			}
			w.bus.Publish(alert.PoolEvent{Kind: kind, Info: info, DataLen: len(raw), Slot: n.Slot})
		},
		OnLogs: func(program string, n solanaws.LogsNotification) {
			w.bus.Publish(alert.PoolEvent{
				Kind:      alert.EventProgramLog,
				Program:   program,
				Signature: n.Signature,
				Logs:      n.Logs,
				Slot:      n.Slot,
			})
			// ProgramLog carries a program id, not a pool account, so
			// hype is ingested at program granularity (PoolId with an
			// empty Account) and the enrichment stage snapshots under
			// the same key — see internal/hype.Registry's doc comment.
			if w.hype != nil {
				w.hype.IngestLog(alert.PoolId{Program: program}, time.Now().UnixMilli(), n.Logs, n.Signature)
			}
		},
	}

	return client.Listen(ctx, handlers)
}
