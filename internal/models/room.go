package models

import (
	"time"

	"github.com/google/uuid"
)

// Room represents a row in the rooms table.
type Room struct {
	Code string `json:"code"`

	// PlayerOrder is the shuffled turn order fixed once per game.
	PlayerOrder []uuid.UUID `json:"playerOrder"`

	// TotalRounds is the number of full cycles through PlayerOrder.
	TotalRounds int `json:"totalRounds"`
	// CompletedRounds counts the turns played so far in this game.
	CompletedRounds int `json:"completedRounds"`

	// TurnIndex is the position in PlayerOrder of the latest clue-giver. It
	// may be -1 when that player left from the head of the order.
	TurnIndex int `json:"turnIndex"`
	// Cycle is the 1-based pass through PlayerOrder, 0 before the game starts.
	Cycle int `json:"cycle"`

	// WordChoices holds the two words offered to the current clue-giver, nil
	// once a word has been picked.
	WordChoices []WordChoice `json:"wordChoices,omitempty"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// WordChoice is one of the two words offered at the start of a turn.
type WordChoice struct {
	Word          string `json:"word"`
	RequiredClues int    `json:"required_clues"`
	CanMalus      bool   `json:"can_malus"`
}

// CurrentCycle returns the 1-based cycle number shown to clients.
func (r *Room) CurrentCycle() int {
	if len(r.PlayerOrder) == 0 || r.Cycle < 1 {
		return 0
	}
	if r.TotalRounds > 0 && r.Cycle > r.TotalRounds {
		return r.TotalRounds
	}
	return r.Cycle
}

// StartTurns puts the cursor on the first player of the first cycle.
func (r *Room) StartTurns(order []uuid.UUID, totalRounds int) {
	r.PlayerOrder = order
	r.TotalRounds = totalRounds
	r.CompletedRounds = 0
	r.TurnIndex = 0
	r.Cycle = 1
}

// NextTurn moves the cursor to the following player, wrapping into the next
// cycle. It reports false once the last cycle is over; the cursor is left
// untouched in that case.
func (r *Room) NextTurn() (uuid.UUID, bool) {
	n := len(r.PlayerOrder)
	if n == 0 {
		return uuid.Nil, false
	}
	next, cycle := r.TurnIndex+1, r.Cycle
	if next >= n {
		next, cycle = 0, cycle+1
	}
	if cycle > r.TotalRounds {
		return uuid.Nil, false
	}
	r.TurnIndex, r.Cycle = next, cycle
	return r.PlayerOrder[next], true
}

// RemoveFromOrder drops id from PlayerOrder. The cursor is shifted so that
// NextTurn still lands on the player who was due after the removed one.
func (r *Room) RemoveFromOrder(id uuid.UUID) bool {
	for i, pid := range r.PlayerOrder {
		if pid != id {
			continue
		}
		r.PlayerOrder = append(r.PlayerOrder[:i:i], r.PlayerOrder[i+1:]...)
		if i <= r.TurnIndex {
			r.TurnIndex--
		}
		return true
	}
	return false
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	cp := *r
	cp.PlayerOrder = append([]uuid.UUID(nil), r.PlayerOrder...)
	if r.WordChoices != nil {
		cp.WordChoices = append([]WordChoice(nil), r.WordChoices...)
	}
	return &cp
}
