package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *RoundCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb, err := ConnectRedis(context.Background(), addr, 15)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRoundCache(rdb, time.Minute)
}

func TestRoundCacheRedactsUntilComplete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	code := "T" + uuid.NewString()[:5]
	t.Cleanup(func() { _ = c.DeleteRound(ctx, code) })

	_, err := c.LoadRound(ctx, code)
	assert.ErrorIs(t, err, ErrMiss)

	snap := &models.RoundSnapshot{ID: 1, Phase: models.PhaseClue, Word: "pomme", RequiredClues: 3, GivenClues: []string{"fruit"}}
	require.NoError(t, c.SaveRound(ctx, code, snap))

	got, err := c.LoadRound(ctx, code)
	require.NoError(t, err)
	assert.Empty(t, got.Word)
	assert.Equal(t, []string{"fruit"}, got.GivenClues)

	snap.IsCompleted = true
	require.NoError(t, c.SaveRound(ctx, code, snap))
	got, err = c.LoadRound(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "pomme", got.Word)
}
