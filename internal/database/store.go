package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint (room code, pseudo, session) is violated.
	ErrConflict = errors.New("record already exists")
)

// Store is the persistence collaborator for rooms and players.
// Implementations must be safe for concurrent use.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, code string) (*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, code string) error

	CreatePlayer(ctx context.Context, player *models.Player) error
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	GetPlayerBySession(ctx context.Context, roomCode string, sessionID uuid.UUID) (*models.Player, error)
	// ListPlayers returns the room's players ordered by join time.
	ListPlayers(ctx context.Context, roomCode string) ([]*models.Player, error)
	UpdatePlayer(ctx context.Context, player *models.Player) error
	DeletePlayer(ctx context.Context, id uuid.UUID) error
}
