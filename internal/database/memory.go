package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/models"
)

// MemoryStore keeps rooms and players in process memory. It backs the server
// when no DATABASE_URL is configured and is used throughout the tests.
type MemoryStore struct {
	mu      sync.Mutex
	rooms   map[string]*models.Room
	players map[uuid.UUID]*models.Player
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string]*models.Room),
		players: make(map[uuid.UUID]*models.Player),
	}
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.Code]; exists {
		return fmt.Errorf("%w: room %s", ErrConflict, room.Code)
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	s.rooms[room.Code] = room.Clone()
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) UpdateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; !ok {
		return ErrNotFound
	}
	s.rooms[room.Code] = room.Clone()
	return nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	for id, p := range s.players {
		if p.RoomCode == code {
			delete(s.players, id)
		}
	}
	return nil
}

func (s *MemoryStore) CreatePlayer(_ context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[player.RoomCode]; !ok {
		return fmt.Errorf("room %s: %w", player.RoomCode, ErrNotFound)
	}
	for _, p := range s.players {
		if p.RoomCode == player.RoomCode && p.Pseudo == player.Pseudo {
			return fmt.Errorf("%w: pseudo %q", ErrConflict, player.Pseudo)
		}
	}
	if player.ID == uuid.Nil {
		player.ID = uuid.New()
	}
	if player.SessionID == uuid.Nil {
		player.SessionID = uuid.New()
	}
	if player.JoinedAt.IsZero() {
		player.JoinedAt = time.Now().UTC()
	}
	cp := *player
	s.players[player.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPlayerBySession(_ context.Context, roomCode string, sessionID uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.RoomCode == roomCode && p.SessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListPlayers(_ context.Context, roomCode string) ([]*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Player
	for _, p := range s.players {
		if p.RoomCode == roomCode {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdatePlayer(_ context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[player.ID]
	if !ok {
		return ErrNotFound
	}
	p.IsOwner = player.IsOwner
	p.Score = player.Score
	return nil
}

func (s *MemoryStore) DeletePlayer(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}
