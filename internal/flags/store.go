// Package flags gives operators a live switch to pause a single program's
// watcher without a redeploy, backed by Redis so the pause survives a
// restart of cmd/sentinel itself.
package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pauseKeyPrefix = "pool-sentinel:pause_watcher:"

// PauseGate is the narrow Redis-backed store cmd/sentinel consults once per
// configured program at startup: is this watcher currently paused, and if
// so why.
type PauseGate struct {
	client redis.Cmdable
}

// NewPauseGate wraps an existing Redis client. It does not ping the server;
// callers that want a fail-fast startup check should do that themselves
// before constructing a PauseGate.
func NewPauseGate(client redis.Cmdable) (*PauseGate, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &PauseGate{client: client}, nil
}

// Pause marks program as paused, recording reason for the next operator who
// looks at it.
func (g *PauseGate) Pause(ctx context.Context, program, reason string) error {
	flag := PauseFlag{Program: program, Reason: reason, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("marshal pause flag: %w", err)
	}
	if err := g.client.Set(ctx, pauseKey(program), b, 0).Err(); err != nil {
		return fmt.Errorf("set pause flag: %w", err)
	}
	return nil
}

// Resume clears program's pause flag, if any.
func (g *PauseGate) Resume(ctx context.Context, program string) error {
	if err := g.client.Del(ctx, pauseKey(program)).Err(); err != nil {
		return fmt.Errorf("delete pause flag: %w", err)
	}
	return nil
}

// Get returns program's current pause flag, or ErrNotFound if it is not
// paused.
func (g *PauseGate) Get(ctx context.Context, program string) (*PauseFlag, error) {
	val, err := g.client.Get(ctx, pauseKey(program)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pause flag: %w", err)
	}

	var f PauseFlag
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, fmt.Errorf("unmarshal pause flag: %w", err)
	}
	return &f, nil
}

// Enabled reports whether program is currently paused. A nil *PauseGate
// (Redis not configured) or any lookup error reports false, so callers
// never have to special-case an absent flags backend at every call site.
func (g *PauseGate) Enabled(ctx context.Context, program string) bool {
	if g == nil {
		return false
	}
	_, err := g.Get(ctx, program)
	return err == nil
}

func pauseKey(program string) string {
	return pauseKeyPrefix + program
}
