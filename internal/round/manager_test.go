package round

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMirror struct {
	mu      sync.Mutex
	saved   []models.RoundSnapshot
	deleted int
}

func (mm *mockMirror) DeleteRound(_ context.Context, _ string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.deleted++
	return nil
}

func (mm *mockMirror) SaveRound(_ context.Context, _ string, snap *models.RoundSnapshot) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.saved = append(mm.saved, *snap)
	return nil
}

func (mm *mockMirror) last() models.RoundSnapshot {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.saved[len(mm.saved)-1]
}

func setupManager(t *testing.T) (*Manager, *models.Player, *mockMirror) {
	t.Helper()
	ctx := context.Background()
	store := database.NewMemoryStore()
	require.NoError(t, store.CreateRoom(ctx, &models.Room{Code: "RND001", IsActive: true}))
	giver := &models.Player{RoomCode: "RND001", Pseudo: "alice", IsOwner: true}
	require.NoError(t, store.CreatePlayer(ctx, giver))
	mm := &mockMirror{}
	return NewManager("RND001", store, mm, nil), giver, mm
}

func TestStartNewRoundUnknownRoom(t *testing.T) {
	m := NewManager("NOPE00", database.NewMemoryStore(), nil, nil)
	_, err := m.StartNewRound(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMutationsWithoutRound(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.UpdatePhase(ctx, models.PhaseClue, PhaseFields{})
	assert.ErrorIs(t, err, ErrNoActiveRound)
	_, err = m.AddClue(ctx, "fruit")
	assert.ErrorIs(t, err, ErrNoActiveRound)
	_, _, _, err = m.AddGuess(ctx, uuid.New(), "pomme")
	assert.ErrorIs(t, err, ErrNoActiveRound)
	_, ok := m.CurrentRoundWithPlayer(ctx)
	assert.False(t, ok)
}

func TestRoundFlow(t *testing.T) {
	m, giver, mm := setupManager(t)
	ctx := context.Background()

	r, err := m.StartNewRound(ctx, giver.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseChoice, r.Phase)
	assert.Equal(t, 1, r.Seq)

	word, required, malus := "pomme", 2, true
	r, err = m.UpdatePhase(ctx, models.PhaseClue, PhaseFields{Word: &word, RequiredClues: &required, CanMalus: &malus})
	require.NoError(t, err)
	assert.Equal(t, "pomme", r.Word)
	assert.Equal(t, 2, r.RequiredClues)
	assert.True(t, r.CanMalus)

	_, err = m.AddClue(ctx, "fruit")
	require.NoError(t, err)
	_, err = m.UpdatePhase(ctx, models.PhaseGuess, PhaseFields{})
	require.NoError(t, err)

	snap, ok := m.CurrentRoundWithPlayer(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", snap.CurrentPlayer.Pseudo)
	assert.Equal(t, []string{"fruit"}, snap.GivenClues)
	assert.Equal(t, models.PhaseGuess, mm.last().Phase)

	_, err = m.UpdatePhase(ctx, models.Phase("lobby"), PhaseFields{})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestAddGuessIsIdempotentPerPass(t *testing.T) {
	m, giver, _ := setupManager(t)
	ctx := context.Background()
	_, err := m.StartNewRound(ctx, giver.ID)
	require.NoError(t, err)
	_, err = m.UpdatePhase(ctx, models.PhaseGuess, PhaseFields{})
	require.NoError(t, err)

	bob := uuid.New()
	guesses, guessing, ts, err := m.AddGuess(ctx, bob, "poire")
	require.NoError(t, err)
	assert.Len(t, guesses, 1)
	assert.Equal(t, []uuid.UUID{bob}, guessing)
	assert.False(t, ts.IsZero())

	guesses, guessing, ts, err = m.AddGuess(ctx, bob, "pomme")
	require.NoError(t, err)
	assert.Len(t, guesses, 1, "second guess in the same pass is ignored")
	assert.Len(t, guessing, 1)
	assert.True(t, ts.IsZero())

	// A new guess pass clears the guessing set but keeps history.
	_, err = m.UpdatePhase(ctx, models.PhaseClue, PhaseFields{})
	require.NoError(t, err)
	r, err := m.UpdatePhase(ctx, models.PhaseGuess, PhaseFields{})
	require.NoError(t, err)
	assert.Empty(t, r.GuessingPlayers)

	guesses, _, _, err = m.AddGuess(ctx, bob, "pomme")
	require.NoError(t, err)
	assert.Len(t, guesses, 2)
}

func TestCompletedRoundIsImmutable(t *testing.T) {
	m, giver, mm := setupManager(t)
	ctx := context.Background()
	_, err := m.StartNewRound(ctx, giver.ID)
	require.NoError(t, err)

	winner := uuid.New()
	r, err := m.CompleteRound(ctx, true, &winner)
	require.NoError(t, err)
	assert.True(t, r.IsCompleted)
	assert.Equal(t, winner, *r.WinnerID)

	_, err = m.AddClue(ctx, "late")
	assert.ErrorIs(t, err, ErrRoundCompleted)
	_, err = m.UpdatePhase(ctx, models.PhaseGuess, PhaseFields{})
	assert.ErrorIs(t, err, ErrRoundCompleted)
	_, err = m.CompleteRound(ctx, false, nil)
	assert.ErrorIs(t, err, ErrRoundCompleted)

	require.NoError(t, m.MarkMalusApplied(ctx))
	assert.True(t, m.Current().MalusApplied)
	assert.True(t, mm.last().IsCompleted)
}

func TestRemoveFromOrderPersistsCursor(t *testing.T) {
	m, giver, _ := setupManager(t)
	ctx := context.Background()
	other := uuid.New()

	room, err := m.store.GetRoom(ctx, "RND001")
	require.NoError(t, err)
	room.StartTurns([]uuid.UUID{giver.ID, other}, 1)
	require.NoError(t, m.store.UpdateRoom(ctx, room))

	removed, err := m.RemoveFromOrder(ctx, giver.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := m.PlayerOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{other}, got)
	room, err = m.store.GetRoom(ctx, "RND001")
	require.NoError(t, err)
	assert.Equal(t, -1, room.TurnIndex)

	removed, err = m.RemoveFromOrder(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, removed)

	ghost := NewManager("GHOST0", database.NewMemoryStore(), nil, nil)
	_, err = ghost.RemoveFromOrder(ctx, other)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestResetDropsRoundAndMirror(t *testing.T) {
	m, giver, mm := setupManager(t)
	ctx := context.Background()
	_, err := m.StartNewRound(ctx, giver.ID)
	require.NoError(t, err)

	m.Reset(ctx)

	assert.Nil(t, m.Current())
	assert.Equal(t, 1, mm.deleted)
	_, err = m.AddClue(ctx, "fruit")
	assert.ErrorIs(t, err, ErrNoActiveRound)
}
