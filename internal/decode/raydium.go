package decode

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

const (
	raydiumConfigLen       = 117
	raydiumConfigFeeOffset = 47

	raydiumPoolMinLen          = 237
	raydiumPoolConfigRefOffset = 9
	raydiumPoolBaseMintOffset  = 73
	raydiumPoolQuoteMintOffset = 105
	raydiumPoolTickSpacOffset  = 235
)

// ConfigTable is the Raydium AMM-config fee side table described in
// spec.md §4.A: an eventually-consistent map from config account to
// fee_bps, populated opportunistically by config-record decodes and read
// by pool-record decodes. It is owned and constructed explicitly by the
// caller (the watcher) rather than a package-global, per Design Note §9.
type ConfigTable struct {
	mu   sync.RWMutex
	fees map[string]uint32
}

// NewConfigTable constructs an empty side table.
func NewConfigTable() *ConfigTable {
	return &ConfigTable{fees: make(map[string]uint32)}
}

func (t *ConfigTable) set(config string, feeBps uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fees[config] = feeBps
}

func (t *ConfigTable) get(config string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.fees[config]
	return v, ok
}

// Raydium decodes both Raydium CLMM and CPMM accounts, which spec.md §4.A
// and §9 both note are treated identically: a 117-byte config record, or
// a pool record longer than 237 bytes.
type Raydium struct {
	Introspector TokenIntrospector
	Configs      *ConfigTable
}

// Decode dispatches on input length. A config record (len == 117) updates
// Configs and returns (nil, nil): it carries no PoolInfo. A pool record
// (len > 237) returns a PoolInfo, with fee_bps left nil if its referenced
// config has not been observed yet. Anything else yields (nil, nil) and
// never panics.
func (r *Raydium) Decode(ctx context.Context, dex alert.Dex, program, account string, raw []byte) (*alert.PoolInfo, error) {
	switch {
	case len(raw) == raydiumConfigLen:
		r.decodeConfig(account, raw)
		return nil, nil
	case len(raw) > raydiumPoolMinLen:
		return r.decodePool(ctx, dex, program, account, raw)
	default:
		return nil, nil
	}
}

// decodeConfig records the trade fee of an AMM-config record, keyed by the
// config record's own account address, into the shared side table.
func (r *Raydium) decodeConfig(configAccount string, raw []byte) {
	tradeFee := binary.LittleEndian.Uint32(raw[raydiumConfigFeeOffset : raydiumConfigFeeOffset+4])
	feeBps := uint32((uint64(tradeFee) * 10_000) / 1_000_000)
	r.Configs.set(configAccount, feeBps)
}

func (r *Raydium) decodePool(ctx context.Context, dex alert.Dex, program, account string, raw []byte) (*alert.PoolInfo, error) {
	configRef := raw[raydiumPoolConfigRefOffset : raydiumPoolConfigRefOffset+32]
	configKey := base58.Encode(configRef)

	baseMint := solana.PublicKeyFromBytes(raw[raydiumPoolBaseMintOffset : raydiumPoolBaseMintOffset+32]).String()
	quoteMint := solana.PublicKeyFromBytes(raw[raydiumPoolQuoteMintOffset : raydiumPoolQuoteMintOffset+32]).String()
	tickSpacing := binary.LittleEndian.Uint16(raw[raydiumPoolTickSpacOffset : raydiumPoolTickSpacOffset+2])

	info := &alert.PoolInfo{
		Dex:         dex,
		Id:          alert.PoolId{Program: program, Account: account},
		BaseMint:    &baseMint,
		QuoteMint:   &quoteMint,
		TickSpacing: &tickSpacing,
	}

	if feeBps, ok := r.Configs.get(configKey); ok {
		info.FeeBps = &feeBps
	}

	populateToken2022Flags(ctx, info, r.Introspector)
	return info, nil
}
