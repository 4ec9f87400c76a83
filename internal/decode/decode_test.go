package decode

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillMint(buf []byte, offset int, b byte) {
	for i := 0; i < 32; i++ {
		buf[offset+i] = b
	}
}

func TestOrcaDecode_WellFormed(t *testing.T) {
	raw := make([]byte, 200)
	binary.LittleEndian.PutUint16(raw[orcaTickSpacingOffset:], 3)
	binary.LittleEndian.PutUint16(raw[orcaFeeRateOffset:], 5)
	fillMint(raw, orcaMintAOffset, 0xAA)
	fillMint(raw, orcaMintBOffset, 0xBB)

	o := &Orca{}
	info, err := o.Decode(context.Background(), "prog", "acct", raw)
	require.NoError(t, err)
	require.NotNil(t, info)

	require.NotNil(t, info.FeeBps)
	assert.Equal(t, uint32(5), *info.FeeBps)
	require.NotNil(t, info.TickSpacing)
	assert.Equal(t, uint16(3), *info.TickSpacing)
	assert.NotNil(t, info.BaseMint)
	assert.NotNil(t, info.QuoteMint)
}

func TestOrcaDecode_TooShort(t *testing.T) {
	o := &Orca{}
	for _, n := range []int{0, 1, 50, 180} {
		info, err := o.Decode(context.Background(), "prog", "acct", make([]byte, n))
		assert.NoError(t, err)
		assert.Nil(t, info)
	}
}

func TestOrcaDecode_NeverPanics(t *testing.T) {
	o := &Orca{}
	lengths := []int{0, 1, 8, 9, 13, 69, 100, 149, 180, 181, 182, 500}
	for _, n := range lengths {
		raw := make([]byte, n)
		assert.NotPanics(t, func() {
			_, _ = o.Decode(context.Background(), "p", "a", raw)
		})
	}
}

func TestRaydium_ConfigThenPool(t *testing.T) {
	configRefBytes := make([]byte, 32)
	fillMint(configRefBytes, 0, 0xCC)
	configAccount := base58.Encode(configRefBytes)

	cfg := make([]byte, raydiumConfigLen)
	binary.LittleEndian.PutUint32(cfg[raydiumConfigFeeOffset:], 300)

	configs := NewConfigTable()
	r := &Raydium{Configs: configs}

	info, err := r.Decode(context.Background(), "prog", "prog", configAccount, cfg)
	require.NoError(t, err)
	assert.Nil(t, info, "config record carries no PoolInfo")

	pool := make([]byte, 240)
	copy(pool[raydiumPoolConfigRefOffset:raydiumPoolConfigRefOffset+32], configRefBytes)
	fillMint(pool, raydiumPoolBaseMintOffset, 0x01)
	fillMint(pool, raydiumPoolQuoteMintOffset, 0x02)
	binary.LittleEndian.PutUint16(pool[raydiumPoolTickSpacOffset:], 9)

	info, err = r.Decode(context.Background(), "prog", "prog", "pool1", pool)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.NotNil(t, info.FeeBps)
	assert.Equal(t, uint32(3), *info.FeeBps) // 300 * 10000 / 1_000_000
	require.NotNil(t, info.TickSpacing)
	assert.Equal(t, uint16(9), *info.TickSpacing)
}

func TestRaydium_PoolBeforeConfig_FeeAbsent(t *testing.T) {
	configs := NewConfigTable()
	r := &Raydium{Configs: configs}

	pool := make([]byte, 240)
	binary.LittleEndian.PutUint16(pool[raydiumPoolTickSpacOffset:], 9)

	info, err := r.Decode(context.Background(), "prog", "prog", "pool1", pool)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Nil(t, info.FeeBps)
}

func TestRaydium_NeverPanics(t *testing.T) {
	r := &Raydium{Configs: NewConfigTable()}
	lengths := []int{0, 1, 9, 47, 73, 105, 116, 117, 118, 200, 235, 237, 238, 300}
	for _, n := range lengths {
		raw := make([]byte, n)
		assert.NotPanics(t, func() {
			_, _ = r.Decode(context.Background(), "prog", "prog", "acct", raw)
		})
	}
}
