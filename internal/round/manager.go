// internal/round/manager.go
package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrNoActiveRound  = errors.New("no active round")
	ErrRoundCompleted = errors.New("round already completed")
	ErrInvalidPhase   = errors.New("invalid phase")
)

// Mirror receives a read projection after every mutation.
type Mirror interface {
	SaveRound(ctx context.Context, code string, snap *models.RoundSnapshot) error
	DeleteRound(ctx context.Context, code string) error
}

// PhaseFields are the optional round attributes set alongside a phase change.
type PhaseFields struct {
	Word          *string
	RequiredClues *int
	CanMalus      *bool
}

// Manager owns the current round of one room. The round itself lives in
// memory; the player order is persisted on the room record.
type Manager struct {
	code   string
	store  database.Store
	mirror Mirror
	logger *logrus.Entry
	now    func() time.Time

	mu            sync.RWMutex
	current       *models.Round
	currentPseudo string
	seq           int
}

// NewManager returns a manager for the room identified by code. mirror may be nil.
func NewManager(code string, store database.Store, mirror Mirror, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		code:   code,
		store:  store,
		mirror: mirror,
		logger: logger.WithField("room", code),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// StartNewRound replaces the current round with a fresh one in choice phase.
func (m *Manager) StartNewRound(ctx context.Context, currentPlayerID uuid.UUID) (*models.Round, error) {
	if _, err := m.store.GetRoom(ctx, m.code); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room %s: %w", m.code, err)
	}
	pseudo := ""
	if p, err := m.store.GetPlayer(ctx, currentPlayerID); err == nil {
		pseudo = p.Pseudo
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("load clue-giver %s: %w", currentPlayerID, err)
	}

	m.mu.Lock()
	m.seq++
	m.current = &models.Round{
		Seq:             m.seq,
		RoomCode:        m.code,
		CurrentPlayerID: currentPlayerID,
		Phase:           models.PhaseChoice,
		StartedAt:       m.now(),
	}
	m.currentPseudo = pseudo
	r := m.current.Clone()
	m.mu.Unlock()

	m.mirrorRound(ctx)
	return r, nil
}

// UpdatePhase moves the round to phase and applies the supplied fields.
// Entering the guess phase always clears the guessing set.
func (m *Manager) UpdatePhase(ctx context.Context, phase models.Phase, f PhaseFields) (*models.Round, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}
	r, err := m.mutate(ctx, func(r *models.Round) error {
		r.Phase = phase
		if phase == models.PhaseGuess {
			r.GuessingPlayers = nil
		}
		if f.Word != nil {
			r.Word = *f.Word
		}
		if f.RequiredClues != nil {
			r.RequiredClues = *f.RequiredClues
		}
		if f.CanMalus != nil {
			r.CanMalus = *f.CanMalus
		}
		return nil
	})
	return r, err
}

// AddClue appends clue. Duplicate detection is the caller's concern.
func (m *Manager) AddClue(ctx context.Context, clue string) (*models.Round, error) {
	return m.mutate(ctx, func(r *models.Round) error {
		r.GivenClues = append(r.GivenClues, clue)
		return nil
	})
}

// AddGuess records a guess unless playerID already guessed in this pass, in
// which case the lists are returned unchanged with a zero timestamp.
func (m *Manager) AddGuess(ctx context.Context, playerID uuid.UUID, word string) ([]models.Guess, []uuid.UUID, time.Time, error) {
	var ts time.Time
	r, err := m.mutate(ctx, func(r *models.Round) error {
		if r.HasGuessed(playerID) {
			return errNoChange
		}
		ts = m.now()
		r.GivenGuesses = append(r.GivenGuesses, models.Guess{PlayerID: playerID, Word: word, Timestamp: ts})
		r.GuessingPlayers = append(r.GuessingPlayers, playerID)
		return nil
	})
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	return r.GivenGuesses, r.GuessingPlayers, ts, nil
}

// CompleteRound closes the round. It is terminal.
func (m *Manager) CompleteRound(ctx context.Context, wordFound bool, winnerID *uuid.UUID) (*models.Round, error) {
	return m.mutate(ctx, func(r *models.Round) error {
		r.IsCompleted = true
		r.WordFound = wordFound
		if winnerID != nil {
			w := *winnerID
			r.WinnerID = &w
		}
		return nil
	})
}

// MarkMalusApplied flags the completed round's malus as spent.
func (m *Manager) MarkMalusApplied(ctx context.Context) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrNoActiveRound
	}
	m.current.MalusApplied = true
	m.mu.Unlock()
	m.mirrorRound(ctx)
	return nil
}

// Reset drops the current round and its mirror, on game start or once the room empties.
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	m.current = nil
	m.currentPseudo = ""
	m.mu.Unlock()

	if m.mirror == nil {
		return
	}
	if err := m.mirror.DeleteRound(ctx, m.code); err != nil {
		m.logger.WithError(err).Warn("failed to drop mirrored round")
	}
}

// Current returns a copy of the current round, or nil.
func (m *Manager) Current() *models.Round {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return m.current.Clone()
}

// CurrentRoundWithPlayer returns the read projection of the current round.
func (m *Manager) CurrentRoundWithPlayer(_ context.Context) (*models.RoundSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, false
	}
	return m.snapshotLocked(), true
}

// RemoveFromOrder drops id from the persisted turn order and shifts the turn
// cursor so the next clue-giver stays the same. It reports whether id was in
// the order.
func (m *Manager) RemoveFromOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	room, err := m.store.GetRoom(ctx, m.code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, ErrRoomNotFound
		}
		return false, err
	}
	if !room.RemoveFromOrder(id) {
		return false, nil
	}
	if err := m.store.UpdateRoom(ctx, room); err != nil {
		return false, fmt.Errorf("persist player order: %w", err)
	}
	return true, nil
}

// PlayerOrder reads the persisted turn order.
func (m *Manager) PlayerOrder(ctx context.Context) ([]uuid.UUID, error) {
	room, err := m.store.GetRoom(ctx, m.code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room.PlayerOrder, nil
}

var errNoChange = errors.New("no change")

// mutate applies fn to the live round under the lock. Completed rounds are
// never handed to fn.
func (m *Manager) mutate(ctx context.Context, fn func(r *models.Round) error) (*models.Round, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return nil, ErrNoActiveRound
	}
	if m.current.IsCompleted {
		m.mu.Unlock()
		return nil, ErrRoundCompleted
	}
	err := fn(m.current)
	r := m.current.Clone()
	m.mu.Unlock()

	if errors.Is(err, errNoChange) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	m.mirrorRound(ctx)
	return r, nil
}

func (m *Manager) snapshotLocked() *models.RoundSnapshot {
	r := m.current.Clone()
	return &models.RoundSnapshot{
		ID:              r.Seq,
		Phase:           r.Phase,
		Word:            r.Word,
		RequiredClues:   r.RequiredClues,
		GivenClues:      r.GivenClues,
		GivenGuesses:    r.GivenGuesses,
		CanMalus:        r.CanMalus,
		GuessingPlayers: r.GuessingPlayers,
		CurrentPlayer:   models.PlayerRef{ID: r.CurrentPlayerID, Pseudo: m.currentPseudo},
		IsCompleted:     r.IsCompleted,
		WordFound:       r.WordFound,
		WinnerID:        r.WinnerID,
	}
}

func (m *Manager) mirrorRound(ctx context.Context) {
	if m.mirror == nil {
		return
	}
	snap, ok := m.CurrentRoundWithPlayer(ctx)
	if !ok {
		return
	}
	if err := m.mirror.SaveRound(ctx, m.code, snap); err != nil {
		m.logger.WithError(err).Warn("failed to mirror round")
	}
}
