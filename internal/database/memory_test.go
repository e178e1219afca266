package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoomLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	room := &models.Room{Code: "ABC123", IsActive: true}
	require.NoError(t, s.CreateRoom(ctx, room))
	assert.ErrorIs(t, s.CreateRoom(ctx, &models.Room{Code: "ABC123"}), ErrConflict)

	got, err := s.GetRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.False(t, got.CreatedAt.IsZero())

	// Mutating the returned copy must not leak into the store.
	got.PlayerOrder = append(got.PlayerOrder, uuid.New())
	again, _ := s.GetRoom(ctx, "ABC123")
	assert.Empty(t, again.PlayerOrder)

	got.TotalRounds = 3
	require.NoError(t, s.UpdateRoom(ctx, got))
	again, _ = s.GetRoom(ctx, "ABC123")
	assert.Equal(t, 3, again.TotalRounds)
	assert.Len(t, again.PlayerOrder, 1)

	assert.ErrorIs(t, s.UpdateRoom(ctx, &models.Room{Code: "NOPE00"}), ErrNotFound)

	require.NoError(t, s.DeleteRoom(ctx, "ABC123"))
	_, err = s.GetRoom(ctx, "ABC123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorePlayers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateRoom(ctx, &models.Room{Code: "ROOM01", IsActive: true}))

	base := time.Now().UTC()
	alice := &models.Player{RoomCode: "ROOM01", Pseudo: "alice", IsOwner: true, JoinedAt: base}
	bob := &models.Player{RoomCode: "ROOM01", Pseudo: "bob", JoinedAt: base.Add(time.Second)}
	require.NoError(t, s.CreatePlayer(ctx, bob))
	require.NoError(t, s.CreatePlayer(ctx, alice))
	assert.NotEqual(t, uuid.Nil, alice.ID)
	assert.NotEqual(t, uuid.Nil, alice.SessionID)

	err := s.CreatePlayer(ctx, &models.Player{RoomCode: "ROOM01", Pseudo: "alice"})
	assert.ErrorIs(t, err, ErrConflict)
	err = s.CreatePlayer(ctx, &models.Player{RoomCode: "GHOST1", Pseudo: "carol"})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListPlayers(ctx, "ROOM01")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Pseudo, "earliest joiner comes first")
	assert.Equal(t, "bob", list[1].Pseudo)

	bySession, err := s.GetPlayerBySession(ctx, "ROOM01", bob.SessionID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, bySession.ID)
	_, err = s.GetPlayerBySession(ctx, "OTHER1", bob.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)

	bob.Score = 4
	bob.IsOwner = true
	require.NoError(t, s.UpdatePlayer(ctx, bob))
	fetched, err := s.GetPlayer(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, fetched.Score)
	assert.True(t, fetched.IsOwner)

	require.NoError(t, s.DeletePlayer(ctx, alice.ID))
	_, err = s.GetPlayer(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdatePlayer(ctx, alice), ErrNotFound)
}

func TestMemoryStoreDeleteRoomCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateRoom(ctx, &models.Room{Code: "CASC01"}))
	p := &models.Player{RoomCode: "CASC01", Pseudo: "solo"}
	require.NoError(t, s.CreatePlayer(ctx, p))

	require.NoError(t, s.DeleteRoom(ctx, "CASC01"))
	_, err := s.GetPlayer(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/app?sslmode=disable", migrateURL("postgres://u:p@db:5432/app?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/app", migrateURL("postgresql://u@db/app"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}
