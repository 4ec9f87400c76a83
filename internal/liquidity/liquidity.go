// Package liquidity produces a best-effort, cheap price and reserve
// estimate for a pool directly from its vault token-account balances (or
// its concentrated-liquidity sqrt-price), without replaying the full
// constant-product or tick-crossing swap math a real quote would need.
// The big.Int/big.Float ratio arithmetic is grounded on the teacher's
// orca.CalculateLegacySwapOutput, which reaches for math/big for the same
// reason: token amounts routinely exceed what float64 can represent
// exactly.
package liquidity

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/aman-zulfiqar/pool-sentinel/internal/rpcx"
	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// VaultReader is the capability ComputeQuick needs: batched balance reads
// of the two vault token accounts backing a pool.
type VaultReader interface {
	GetMultipleAccounts(ctx context.Context, accounts []string) ([]*rpcx.AccountValue, error)
}

// PoolInput is everything ComputeQuick needs to estimate a quick
// price/liquidity read for one pool, per spec.md §4.G.
type PoolInput struct {
	BaseMint  string
	QuoteMint string
	DecimalsA uint8
	DecimalsB uint8

	// VaultA/VaultB are the SPL token accounts holding the pool's
	// reserves. Either may be empty if the pool exposes no vaults (pure
	// CLMM pools compute price from SqrtPriceX64 instead).
	VaultA string
	VaultB string

	// SqrtPriceX64 is the Q64.64 fixed-point sqrt-price CLMM pools carry
	// directly in their account, used instead of vault reserves when
	// IsClmm is set.
	SqrtPriceX64 *big.Int
	IsClmm       bool

	// QuoteMints is the configured list of reference ("quote") token
	// mints used to express TVL in a common unit.
	QuoteMints []string
}

// tokenAccountAmountOffset is the byte offset of the little-endian u64
// amount field within an SPL Token account (mirrors the legacy
// TokenAccount layout: mint(32) + owner(32) + amount(8) at offset 64).
const tokenAccountAmountOffset = 64

// ComputeQuick derives a price/reserves/TVL estimate for one pool. It
// returns a nil QuickLiq (not an error) whenever the inputs are
// insufficient to compute anything useful — e.g. a newly-created pool
// whose vaults are not yet funded — since quick liquidity is an optional
// enrichment field per spec.md §3, never a hard failure.
func ComputeQuick(ctx context.Context, reader VaultReader, in PoolInput) (*alert.QuickLiq, error) {
	liq := &alert.QuickLiq{}

	var reserveA, reserveB uint64
	haveReserves := false

	if in.VaultA != "" && in.VaultB != "" {
		accounts, err := reader.GetMultipleAccounts(ctx, []string{in.VaultA, in.VaultB})
		if err != nil {
			return nil, fmt.Errorf("fetch vault balances: %w", err)
		}
		if len(accounts) != 2 {
			return nil, fmt.Errorf("expected 2 vault accounts, got %d", len(accounts))
		}

		var okA, okB bool
		reserveA, okA = decodeTokenAmount(accounts[0])
		reserveB, okB = decodeTokenAmount(accounts[1])
		if okA && okB {
			haveReserves = true
			liq.ReservesA = &reserveA
			liq.ReservesB = &reserveB
		}
	}

	switch {
	case in.IsClmm && in.SqrtPriceX64 != nil:
		price := clmmPrice(in.SqrtPriceX64, in.DecimalsA, in.DecimalsB)
		liq.PriceAB = &price
	case haveReserves && reserveA > 0 && reserveB > 0:
		price := ratioAsFloat(reserveB, reserveA, in.DecimalsB, in.DecimalsA)
		liq.PriceAB = &price
	}

	if liq.PriceAB == nil && liq.ReservesA == nil {
		// Nothing computable: no price, no reserves.
		return nil, nil
	}

	applyQuoteLiquidity(liq, in, reserveA, reserveB, haveReserves)
	return liq, nil
}

// clmmPrice converts a Q64.64 fixed-point sqrt-price into a decimal price
// expressed in quote-per-base units: (sqrtPrice^2 / 2^128) * 10^(decA-decB).
func clmmPrice(sqrtPriceX64 *big.Int, decimalsA, decimalsB uint8) float64 {
	sq := new(big.Int).Mul(sqrtPriceX64, sqrtPriceX64)

	denom := new(big.Int).Lsh(big.NewInt(1), 128)
	ratio := new(big.Rat).SetFrac(sq, denom)

	f, _ := ratio.Float64()
	scale := math.Pow10(int(decimalsA) - int(decimalsB))
	return f * scale
}

// applyQuoteLiquidity fills TvlQuote/QuoteLiquidity when one side of the
// pool is a configured quote mint, per spec.md §4.G. When both mints
// match, the base mint is treated as the quote side (spec.md §9: "the
// source picks the first match", and BaseMint is listed first in
// PoolInput).
func applyQuoteLiquidity(liq *alert.QuickLiq, in PoolInput, reserveA, reserveB uint64, haveReserves bool) {
	if !haveReserves {
		return
	}

	aIsQuote := containsMint(in.QuoteMints, in.BaseMint)
	bIsQuote := containsMint(in.QuoteMints, in.QuoteMint)
	if !aIsQuote && !bIsQuote {
		return
	}

	quoteUi := uiAmount(reserveA, in.DecimalsA)
	otherUi := uiAmount(reserveB, in.DecimalsB)
	if !aIsQuote {
		quoteUi, otherUi = otherUi, quoteUi
	}

	var otherInQuote float64
	if liq.PriceAB != nil && *liq.PriceAB != 0 {
		if aIsQuote {
			otherInQuote = otherUi / (*liq.PriceAB)
		} else {
			otherInQuote = otherUi * (*liq.PriceAB)
		}
	}

	tvl := quoteUi + otherInQuote
	liq.TvlQuote = &tvl

	quoteLiquidity := quoteUi
	if otherInQuote > 0 && otherInQuote < quoteLiquidity {
		quoteLiquidity = otherInQuote
	}
	liq.QuoteLiquidity = &quoteLiquidity
}

func containsMint(mints []string, mint string) bool {
	if mint == "" {
		return false
	}
	for _, m := range mints {
		if m == mint {
			return true
		}
	}
	return false
}

func decodeTokenAmount(acct *rpcx.AccountValue) (uint64, bool) {
	if acct == nil {
		return 0, false
	}
	raw, err := acct.Decode()
	if err != nil || len(raw) < tokenAccountAmountOffset+8 {
		return 0, false
	}

	amount := uint64(0)
	for i := 7; i >= 0; i-- {
		amount = amount<<8 | uint64(raw[tokenAccountAmountOffset+i])
	}
	return amount, true
}

// ratioAsFloat computes (numerator / 10^numeratorDecimals) / (denominator /
// 10^denominatorDecimals) as a float64. Both operands come from uiAmount
// as float64 values before the big.Rat division, so the result has
// float64 precision; a zero denominator yields 0.
func ratioAsFloat(numerator, denominator uint64, numeratorDecimals, denominatorDecimals uint8) float64 {
	num := new(big.Rat).SetFloat64(uiAmount(numerator, numeratorDecimals))
	den := new(big.Rat).SetFloat64(uiAmount(denominator, denominatorDecimals))
	if den == nil || den.Sign() == 0 || num == nil {
		return 0
	}

	ratio := new(big.Rat).Quo(num, den)
	f, _ := ratio.Float64()
	return f
}

// uiAmount converts a raw token amount to its human-readable decimal
// value.
func uiAmount(raw uint64, decimals uint8) float64 {
	scale := new(big.Float).SetFloat64(1)
	ten := big.NewFloat(10)
	for i := uint8(0); i < decimals; i++ {
		scale.Mul(scale, ten)
	}

	value := new(big.Float).SetUint64(raw)
	value.Quo(value, scale)

	f, _ := value.Float64()
	return f
}
