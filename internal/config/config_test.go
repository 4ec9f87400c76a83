package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SOLANA_RPC_URL", "https://rpc.example.com")
	t.Setenv("SOLANA_WS_URL", "wss://rpc.example.com")
}

func TestLoad_MissingRequiredVarPanics(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "")
	t.Setenv("SOLANA_WS_URL", "")
	assert.Panics(t, func() { _, _ = Load() })
}

func TestLoad_DefaultsApplied(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./out", cfg.OutDir)
	assert.Equal(t, 30*time.Minute, cfg.PeriodicResync)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 20_000, cfg.SafetyCacheSize)
	assert.True(t, cfg.SinkRotateDaily)
	assert.Len(t, cfg.Programs, 3)
	assert.Equal(t, 10, cfg.Hype.BucketSecs)
}

func TestLoad_PeriodicResyncClampedToFloor(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PERIODIC_RESYNC", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, minPeriodicResync, cfg.PeriodicResync)
}

func TestLoad_ParsesProgramsSpec(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROGRAMS", "orca=OrcaProg:OrcaWhirlpools,ray=RayProg:RaydiumCpmm")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Programs, 2)
	assert.Equal(t, "orca", cfg.Programs[0].Name)
	assert.Equal(t, "OrcaProg", cfg.Programs[0].ProgramID)
	assert.EqualValues(t, "OrcaWhirlpools", cfg.Programs[0].Dex)
	assert.EqualValues(t, "RaydiumCpmm", cfg.Programs[1].Dex)
}

func TestLoad_MalformedProgramsSpecErrors(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROGRAMS", "not-a-valid-entry")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_PolicyOverridesFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLICY_FORBID_MINT_CLOSE_AUTHORITY", "true")
	t.Setenv("POLICY_ALLOW_MINT_AUTHORITY", "true")
	t.Setenv("POLICY_MAX_FEE_BPS", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Policy.ForbidMintCloseAuthority)
	assert.True(t, cfg.Policy.AllowMintAuthority)
	assert.EqualValues(t, 50, cfg.Policy.MaxFeeBps)
}

func TestLoad_QuoteMintsSplitAndTrimmed(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("QUOTE_MINTS", " MintA , MintB ,,MintC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"MintA", "MintB", "MintC"}, cfg.QuoteMints)
}
