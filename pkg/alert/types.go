// Package alert holds the shared data model published across the
// enrichment pipeline: pool identity, decoded pool metadata, bus events,
// token safety reports, and the final enriched alert.
package alert

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Dex identifies which on-chain program produced a PoolInfo.
type Dex string

const (
	OrcaWhirlpools Dex = "OrcaWhirlpools"
	RaydiumClmm    Dex = "RaydiumClmm"
	RaydiumCpmm    Dex = "RaydiumCpmm"
)

// PoolId is the identity key used throughout the pipeline.
type PoolId struct {
	Program string `json:"program"`
	Account string `json:"account"`
}

func (id PoolId) String() string {
	return fmt.Sprintf("%s/%s", id.Program, id.Account)
}

// LogFields renders the id as structured logrus fields.
func (id PoolId) LogFields() logrus.Fields {
	return logrus.Fields{
		"program": id.Program,
		"account": id.Account,
	}
}

// PoolInfo is the normalized output of a binary account decoder.
type PoolInfo struct {
	Dex              Dex     `json:"dex"`
	Id               PoolId  `json:"id"`
	BaseMint         *string `json:"base_mint,omitempty"`
	QuoteMint        *string `json:"quote_mint,omitempty"`
	FeeBps           *uint32 `json:"fee_bps,omitempty"`
	TickSpacing      *uint16 `json:"tick_spacing,omitempty"`
	IsToken2022Base  bool    `json:"is_token2022_base"`
	IsToken2022Quote bool    `json:"is_token2022_quote"`
}

// EventKind discriminates the PoolEvent tagged variant.
type EventKind string

const (
	EventSnapshotStarted  EventKind = "SnapshotStarted"
	EventSnapshotFinished EventKind = "SnapshotFinished"
	EventAccountNew       EventKind = "AccountNew"
	EventAccountChanged   EventKind = "AccountChanged"
	EventAccountDeleted   EventKind = "AccountDeleted"
	EventProgramLog       EventKind = "ProgramLog"
	EventResyncTick       EventKind = "ResyncTick"
)

// PoolEvent is the tagged variant published onto the internal event bus.
// Only the fields relevant to Kind are populated; this mirrors spec.md's
// enum-of-structs in a single flat Go struct, the same flattening the
// teacher uses for SwapExecution's many optional timeline fields.
type PoolEvent struct {
	Kind EventKind `json:"kind"`

	// SnapshotStarted / SnapshotFinished / ResyncTick
	Program string `json:"program,omitempty"`
	Count   int    `json:"count,omitempty"`

	// AccountNew / AccountChanged
	Info    *PoolInfo `json:"info,omitempty"`
	DataLen int       `json:"data_len,omitempty"`
	Slot    uint64    `json:"slot,omitempty"`

	// AccountDeleted
	Id *PoolId `json:"id,omitempty"`

	// ProgramLog
	Signature string   `json:"signature,omitempty"`
	Logs      []string `json:"logs,omitempty"`
}

func (e PoolEvent) LogFields() logrus.Fields {
	f := logrus.Fields{"kind": e.Kind}
	if e.Program != "" {
		f["program"] = e.Program
	}
	if e.Info != nil {
		f["pool"] = e.Info.Id.String()
	}
	if e.Id != nil {
		f["pool"] = e.Id.String()
	}
	if e.Signature != "" {
		f["signature"] = e.Signature
	}
	return f
}

// TokenProgramKind identifies the owning SPL token program of a mint.
type TokenProgramKind string

const (
	TokenV1    TokenProgramKind = "TokenV1"
	Token2022  TokenProgramKind = "Token2022"
	TokenOther TokenProgramKind = "Other"
)

// TokenSafetyReport is the classification result for a single mint.
type TokenSafetyReport struct {
	Mint    string           `json:"mint"`
	Program TokenProgramKind `json:"program"`
	// Owner is populated when Program == TokenOther, holding the raw owner
	// program address.
	Owner    string `json:"owner,omitempty"`
	Decimals uint8  `json:"decimals"`
	Supply   uint64 `json:"supply"`

	MintAuthorityNone   bool `json:"mint_authority_none"`
	FreezeAuthorityNone bool `json:"freeze_authority_none"`

	NonTransferable      bool `json:"non_transferable"`
	DefaultFrozen        bool `json:"default_frozen"`
	PermanentDelegate    bool `json:"permanent_delegate"`
	TransferHook         bool `json:"transfer_hook"`
	MemoRequired         bool `json:"memo_required"`
	Confidential         bool `json:"confidential"`
	MintCloseAuthority   bool `json:"mint_close_authority"`
	TransferFeeBps       *uint16 `json:"transfer_fee_bps,omitempty"`
	TransferFeeMaxAbs    *uint64 `json:"transfer_fee_max_abs,omitempty"`

	// UnknownExtensions records TLV extension types the decoder did not
	// recognize, as "ext_<N>" strings; they never affect safety.
	UnknownExtensions []string `json:"unknown_extensions,omitempty"`

	DecisionSafe bool     `json:"decision_safe"`
	Reasons      []string `json:"reasons"`
	Warnings     []string `json:"warnings"`
}

// Policy controls which token flags demote a mint to unsafe vs warn vs
// ignore, per spec.md §6 "Policy semantics".
type Policy struct {
	RequireFreezeAuthorityNone          bool
	ForbidNonTransferable               bool
	ForbidDefaultFrozen                 bool
	ForbidPermanentDelegate             bool
	ForbidTransferHook                  bool
	ForbidConfidential                  bool
	ForbidMemoRequiredIfRouteNoMemo     bool
	ForbidMintCloseAuthority            bool
	AllowMintAuthority                  bool
	MaxFeeBps                           uint16
	MaxFeeAbsUnits                      *uint64
}

// DefaultPolicy mirrors spec.md §6's stated defaults.
func DefaultPolicy() Policy {
	return Policy{
		RequireFreezeAuthorityNone:      true,
		ForbidNonTransferable:           true,
		ForbidDefaultFrozen:             true,
		ForbidPermanentDelegate:         true,
		ForbidTransferHook:              true,
		ForbidConfidential:              true,
		ForbidMemoRequiredIfRouteNoMemo: true,
		ForbidMintCloseAuthority:        false,
		AllowMintAuthority:              false,
		MaxFeeBps:                       100,
	}
}

// HypeSnapshot is a point-in-time read of the rolling hype aggregator for
// one pool.
type HypeSnapshot struct {
	Swaps60s        int   `json:"swaps_60s"`
	BuySellRatio    float64 `json:"buy_sell_ratio"`
	UniqueTraders60s int  `json:"unique_traders_60s"`
	LpNet300s       int64 `json:"lp_net_300s"`
	Score           uint8 `json:"score"`
}

// QuickLiq is a best-effort price/liquidity read from vault balances.
type QuickLiq struct {
	PriceAB        *float64 `json:"price_ab,omitempty"`
	ReservesA      *uint64  `json:"reserves_a,omitempty"`
	ReservesB      *uint64  `json:"reserves_b,omitempty"`
	TvlQuote       *float64 `json:"tvl_quote,omitempty"`
	QuoteLiquidity *float64 `json:"quote_liquidity,omitempty"`
}

// PoolTokenBundle joins a pool identity with both sides' safety reports.
type PoolTokenBundle struct {
	Id          PoolId            `json:"id"`
	BaseReport  TokenSafetyReport `json:"base_report"`
	QuoteReport TokenSafetyReport `json:"quote_report"`
	FeeBps      *uint32           `json:"fee_bps,omitempty"`
	TickSpacing *uint16           `json:"tick_spacing,omitempty"`
	TsMs        int64             `json:"ts_ms"`
}

// EnrichedPoolAlert is the final emitted record: a PoolTokenBundle plus
// optional liquidity and hype enrichment.
type EnrichedPoolAlert struct {
	PoolTokenBundle
	Liquidity *QuickLiq     `json:"liquidity,omitempty"`
	Hype      *HypeSnapshot `json:"hype,omitempty"`
}

// NowMs returns the current wall-clock time in epoch milliseconds, the
// timestamp convention spec.md uses throughout (ts_ms, bucket_ts, etc).
func NowMs(t time.Time) int64 {
	return t.UnixMilli()
}
