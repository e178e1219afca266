// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by LoadRound when no snapshot is stored for the room.
var ErrMiss = errors.New("round not cached")

// DefaultRoundTTL bounds how long a mirrored round survives without updates.
const DefaultRoundTTL = 2 * time.Hour

// ConnectRedis opens a client against addr/db and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RoundCache mirrors the latest round projection of each room into Redis so
// that HTTP readers do not need to reach into a running coordinator.
type RoundCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRoundCache wraps rdb. A non-positive ttl falls back to DefaultRoundTTL.
func NewRoundCache(rdb *redis.Client, ttl time.Duration) *RoundCache {
	if ttl <= 0 {
		ttl = DefaultRoundTTL
	}
	return &RoundCache{rdb: rdb, ttl: ttl}
}

func roundKey(code string) string {
	return "wordclue:round:" + code
}

// SaveRound stores the redacted snapshot, so the secret word never leaves
// the process before the round completes.
func (c *RoundCache) SaveRound(ctx context.Context, code string, snap *models.RoundSnapshot) error {
	data, err := json.Marshal(snap.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal round snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, roundKey(code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET round for room %s: %w", code, err)
	}
	return nil
}

// LoadRound returns the last mirrored snapshot for the room.
func (c *RoundCache) LoadRound(ctx context.Context, code string) (*models.RoundSnapshot, error) {
	data, err := c.rdb.Get(ctx, roundKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to GET round for room %s: %w", code, err)
	}
	var snap models.RoundSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode round snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteRound drops the mirrored round when a room resets.
func (c *RoundCache) DeleteRound(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, roundKey(code)).Err()
}
