package decode

import (
	"context"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// orcaWhirlpoolMinLen is the minimum account length a Whirlpool decode
// needs to read tick_spacing, fee_rate, and both mints.
const orcaWhirlpoolMinLen = 181

const (
	orcaTickSpacingOffset = 9
	orcaFeeRateOffset     = 13
	orcaMintAOffset       = 69
	orcaMintBOffset       = 149
)

// TokenIntrospector resolves whether a mint is owned by the Token-2022
// program. Production code backs this with an RPC lookup; tests inject a
// fake. Modeled as an injected capability per Design Note §9.
type TokenIntrospector interface {
	IsToken2022(ctx context.Context, mint string) (bool, error)
}

// Orca decodes Orca Whirlpool pool accounts.
type Orca struct {
	Introspector TokenIntrospector
}

// Decode parses a raw Whirlpool account. It never panics: inputs shorter
// than orcaWhirlpoolMinLen yield (nil, nil).
func (o *Orca) Decode(ctx context.Context, program, account string, raw []byte) (*alert.PoolInfo, error) {
	if len(raw) < orcaWhirlpoolMinLen {
		return nil, nil
	}

	tickSpacing := binary.LittleEndian.Uint16(raw[orcaTickSpacingOffset : orcaTickSpacingOffset+2])
	feeRate := binary.LittleEndian.Uint16(raw[orcaFeeRateOffset : orcaFeeRateOffset+2])

	mintA := solana.PublicKeyFromBytes(raw[orcaMintAOffset : orcaMintAOffset+32]).String()
	mintB := solana.PublicKeyFromBytes(raw[orcaMintBOffset : orcaMintBOffset+32]).String()

	feeBps := uint32(feeRate)
	info := &alert.PoolInfo{
		Dex:         alert.OrcaWhirlpools,
		Id:          alert.PoolId{Program: program, Account: account},
		BaseMint:    &mintA,
		QuoteMint:   &mintB,
		FeeBps:      &feeBps,
		TickSpacing: &tickSpacing,
	}

	populateToken2022Flags(ctx, info, o.Introspector)
	return info, nil
}

// populateToken2022Flags fills IsToken2022Base/Quote, demoting to false on
// any introspection failure (best-effort, per spec.md §4.A).
func populateToken2022Flags(ctx context.Context, info *alert.PoolInfo, introspector TokenIntrospector) {
	if introspector == nil {
		return
	}
	if info.BaseMint != nil {
		if ok, err := introspector.IsToken2022(ctx, *info.BaseMint); err == nil {
			info.IsToken2022Base = ok
		}
	}
	if info.QuoteMint != nil {
		if ok, err := introspector.IsToken2022(ctx, *info.QuoteMint); err == nil {
			info.IsToken2022Quote = ok
		}
	}
}
