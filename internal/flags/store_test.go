package flags

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	return client
}

func cleanupTestRedis(_ *testing.T, client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

func TestPauseGate_PauseThenGet(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	gate, err := NewPauseGate(client)
	require.NoError(t, err)

	ctx := context.Background()

	err = gate.Pause(ctx, "orca", "investigating bad decode")
	require.NoError(t, err)

	flag, err := gate.Get(ctx, "orca")
	require.NoError(t, err)
	assert.Equal(t, "orca", flag.Program)
	assert.Equal(t, "investigating bad decode", flag.Reason)
	assert.NotZero(t, flag.UpdatedAt)
}

func TestPauseGate_GetUnpausedReturnsNotFound(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	gate, err := NewPauseGate(client)
	require.NoError(t, err)

	_, err = gate.Get(context.Background(), "orca")
	assert.Equal(t, ErrNotFound, err)
}

func TestPauseGate_ResumeClearsFlag(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	gate, err := NewPauseGate(client)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, gate.Pause(ctx, "orca", "maintenance"))

	require.NoError(t, gate.Resume(ctx, "orca"))

	_, err = gate.Get(ctx, "orca")
	assert.Equal(t, ErrNotFound, err)
}

func TestPauseGate_EnabledReflectsPauseState(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	gate, err := NewPauseGate(client)
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, gate.Enabled(ctx, "orca"))

	require.NoError(t, gate.Pause(ctx, "orca", "rollout"))
	assert.True(t, gate.Enabled(ctx, "orca"))

	require.NoError(t, gate.Resume(ctx, "orca"))
	assert.False(t, gate.Enabled(ctx, "orca"))
}

func TestPauseGate_EnabledOnNilGateIsFalse(t *testing.T) {
	var gate *PauseGate
	assert.False(t, gate.Enabled(context.Background(), "orca"))
}

func TestPauseGate_IndependentPerProgram(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	gate, err := NewPauseGate(client)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, gate.Pause(ctx, "orca", "down"))

	assert.True(t, gate.Enabled(ctx, "orca"))
	assert.False(t, gate.Enabled(ctx, "raydium"))
}
