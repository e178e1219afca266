package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is a member of a room. SessionID is the opaque token handed out at
// provisioning time and presented again in the websocket init handshake.
type Player struct {
	ID        uuid.UUID `json:"id"`
	RoomCode  string    `json:"-"`
	Pseudo    string    `json:"pseudo"`
	SessionID uuid.UUID `json:"-"`
	IsOwner   bool      `json:"isOwner"`
	Score     int       `json:"score"`
	JoinedAt  time.Time `json:"-"`
}

// AddScore applies delta to the player's score. The score never drops below 0.
func (p *Player) AddScore(delta int) {
	p.Score += delta
	if p.Score < 0 {
		p.Score = 0
	}
}

// Ref returns the short {id, pseudo} form used inside outbound events.
func (p *Player) Ref() PlayerRef {
	return PlayerRef{ID: p.ID, Pseudo: p.Pseudo}
}

// PlayerRef identifies a player inside event payloads.
type PlayerRef struct {
	ID     uuid.UUID `json:"id"`
	Pseudo string    `json:"pseudo"`
}
