package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestPostgres starts a disposable Postgres, applies the migrations and
// returns a store bound to it.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("wordclue"),
		postgres.WithUsername("wordclue"),
		postgres.WithPassword("wordclue"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(dsn))

	pool, err := ConnectDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPostgresStore(pool)
}

func TestPostgresStore(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	room := &models.Room{Code: "PGTEST", IsActive: true}
	require.NoError(t, s.CreateRoom(ctx, room))
	assert.ErrorIs(t, s.CreateRoom(ctx, &models.Room{Code: "PGTEST"}), ErrConflict)

	owner := &models.Player{RoomCode: "PGTEST", Pseudo: "alice", IsOwner: true}
	require.NoError(t, s.CreatePlayer(ctx, owner))
	guest := &models.Player{RoomCode: "PGTEST", Pseudo: "bob", JoinedAt: owner.JoinedAt.Add(time.Second)}
	require.NoError(t, s.CreatePlayer(ctx, guest))
	assert.ErrorIs(t, s.CreatePlayer(ctx, &models.Player{RoomCode: "PGTEST", Pseudo: "bob"}), ErrConflict)

	room.PlayerOrder = []uuid.UUID{guest.ID, owner.ID}
	room.TotalRounds = 2
	room.TurnIndex = -1
	room.Cycle = 2
	room.WordChoices = []models.WordChoice{{Word: "pomme", RequiredClues: 2}, {Word: "lune", RequiredClues: 4, CanMalus: true}}
	require.NoError(t, s.UpdateRoom(ctx, room))

	got, err := s.GetRoom(ctx, "PGTEST")
	require.NoError(t, err)
	assert.Equal(t, room.PlayerOrder, got.PlayerOrder)
	assert.Equal(t, room.WordChoices, got.WordChoices)
	assert.Equal(t, 2, got.TotalRounds)
	assert.Equal(t, -1, got.TurnIndex)
	assert.Equal(t, 2, got.Cycle)

	players, err := s.ListPlayers(ctx, "PGTEST")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, owner.ID, players[0].ID)

	bySession, err := s.GetPlayerBySession(ctx, "PGTEST", guest.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "bob", bySession.Pseudo)

	guest.Score = 5
	require.NoError(t, s.UpdatePlayer(ctx, guest))
	fetched, err := s.GetPlayer(ctx, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, fetched.Score)

	require.NoError(t, s.DeleteRoom(ctx, "PGTEST"))
	_, err = s.GetPlayer(ctx, guest.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRoom(ctx, "PGTEST")
	assert.ErrorIs(t, err, ErrNotFound)
}
