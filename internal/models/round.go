package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Phase is the step of a round.
type Phase string

const (
	PhaseChoice Phase = "choice"
	PhaseClue   Phase = "clue"
	PhaseGuess  Phase = "guess"
)

// Valid reports whether p is one of the three round phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseChoice, PhaseClue, PhaseGuess:
		return true
	}
	return false
}

// Guess is one attempt at the secret word.
type Guess struct {
	PlayerID  uuid.UUID `json:"playerId"`
	Word      string    `json:"word"`
	Timestamp time.Time `json:"timestamp"`
}

// Round is the state of a single turn. It is owned by the room's round manager
// and never mutated once IsCompleted is set.
type Round struct {
	Seq             int
	RoomCode        string
	CurrentPlayerID uuid.UUID
	Phase           Phase
	Word            string
	RequiredClues   int
	GivenClues      []string
	GivenGuesses    []Guess

	// GuessingPlayers holds the players who already guessed during the
	// current guess pass, in arrival order.
	GuessingPlayers []uuid.UUID

	IsCompleted bool
	WordFound   bool
	WinnerID    *uuid.UUID
	CanMalus    bool
	StartedAt   time.Time

	// MalusApplied is the only field that may change after completion.
	MalusApplied bool
}

// HasGuessed reports whether playerID already guessed during this guess pass.
func (r *Round) HasGuessed(playerID uuid.UUID) bool {
	for _, id := range r.GuessingPlayers {
		if id == playerID {
			return true
		}
	}
	return false
}

// HasClue reports whether clue was already given, ignoring case.
func (r *Round) HasClue(clue string) bool {
	for _, c := range r.GivenClues {
		if strings.EqualFold(c, clue) {
			return true
		}
	}
	return false
}

// WasGuessed reports whether word was already submitted as a guess, ignoring case.
func (r *Round) WasGuessed(word string) bool {
	for _, g := range r.GivenGuesses {
		if strings.EqualFold(g.Word, word) {
			return true
		}
	}
	return false
}

// CluesExhausted reports whether the clue-giver may not give any more clues.
func (r *Round) CluesExhausted() bool {
	return len(r.GivenClues) >= r.RequiredClues
}

// Clone returns a deep copy so callers can read it without holding locks.
func (r *Round) Clone() *Round {
	cp := *r
	cp.GivenClues = append([]string(nil), r.GivenClues...)
	cp.GivenGuesses = append([]Guess(nil), r.GivenGuesses...)
	cp.GuessingPlayers = append([]uuid.UUID(nil), r.GuessingPlayers...)
	if r.WinnerID != nil {
		w := *r.WinnerID
		cp.WinnerID = &w
	}
	return &cp
}

// RoundSnapshot is the read projection of the current round.
type RoundSnapshot struct {
	ID              int         `json:"id"`
	Phase           Phase       `json:"phase"`
	Word            string      `json:"word"`
	RequiredClues   int         `json:"required_clues"`
	GivenClues      []string    `json:"given_clues"`
	GivenGuesses    []Guess     `json:"given_guesses"`
	CanMalus        bool        `json:"can_malus"`
	GuessingPlayers []uuid.UUID `json:"guessing_players"`
	CurrentPlayer   PlayerRef   `json:"current_player"`
	IsCompleted     bool        `json:"is_completed"`
	WordFound       bool        `json:"word_found"`
	WinnerID        *uuid.UUID  `json:"winner_id,omitempty"`
}

// Redacted hides the secret word while the round is still being played.
func (s RoundSnapshot) Redacted() RoundSnapshot {
	if !s.IsCompleted {
		s.Word = ""
	}
	return s
}
