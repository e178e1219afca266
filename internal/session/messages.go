// internal/session/messages.go
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/models"
)

// Inbound intent types.
const (
	IntentInit          = "init"
	IntentMessage       = "message"
	IntentStartGame     = "start_game"
	IntentWordChoice    = "word_choice"
	IntentGiveClue      = "give_clue"
	IntentMakeGuess     = "make_guess"
	IntentJoinGame      = "join_game"
	IntentStartNewRound = "start_new_round"
	IntentApplyMalus    = "apply-malus"
	IntentLeaveRoom     = "leave_room"
	IntentPing          = "ping"
)

// Intent is one decoded client message. Only the fields relevant to Type are set.
type Intent struct {
	Type               string `json:"type"`
	SessionID          string `json:"sessionId,omitempty"`
	Message            string `json:"message,omitempty"`
	TotalRounds        int    `json:"totalRounds,omitempty"`
	Word               string `json:"word,omitempty"`
	Clue               string `json:"clue,omitempty"`
	Guess              string `json:"guess,omitempty"`
	TargetPlayerPseudo string `json:"targetPlayerPseudo,omitempty"`
}

// Status is the coarse game state of a room.
type Status string

const (
	StatusLobby   Status = "lobby"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// RoomSnapshot is a point-in-time view of a room served to HTTP readers.
type RoomSnapshot struct {
	Code        string                `json:"code"`
	Status      Status                `json:"status"`
	Players     []*models.Player      `json:"players"`
	Round       *models.RoundSnapshot `json:"round,omitempty"`
	TimeLeft    int                   `json:"timeLeft"`
	Connections int                   `json:"connections"`
}

func errorMsg(message string) map[string]interface{} {
	return map[string]interface{}{"type": "error", "message": message}
}

func welcomeMsg(playerID uuid.UUID, pseudo string) map[string]interface{} {
	return map[string]interface{}{
		"type":     "welcome",
		"message":  "Welcome " + pseudo,
		"playerId": playerID,
	}
}

func playerMsg(kind string, p models.PlayerRef) map[string]interface{} {
	return map[string]interface{}{"type": kind, "player": p}
}

func lobbyMsg(message string, from models.PlayerRef) map[string]interface{} {
	return map[string]interface{}{
		"type":    "lobby_message",
		"message": message,
		"player":  from,
	}
}

func wordSelectedMsg(word string, required int) map[string]interface{} {
	return map[string]interface{}{
		"type":           "word_selected",
		"word":           word,
		"required_clues": required,
	}
}

func clueGivenMsg(clue string, playerID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"type":     "clue_given",
		"clue":     clue,
		"playerId": playerID,
	}
}

func guessMadeMsg(playerID uuid.UUID, guess string, ts time.Time, all []models.Guess) map[string]interface{} {
	return map[string]interface{}{
		"type":       "guess_made",
		"playerId":   playerID,
		"guess":      guess,
		"timestamp":  ts,
		"allGuesses": all,
	}
}

func phaseChangedMsg(phase models.Phase, currentPlayer uuid.UUID, timeLeft int) map[string]interface{} {
	return map[string]interface{}{
		"type":          "phase_changed",
		"phase":         phase,
		"currentPlayer": currentPlayer,
		"timeLeft":      timeLeft,
	}
}

func gameEndMsg(players []*models.Player) map[string]interface{} {
	return map[string]interface{}{"type": "game_end", "players": players}
}

// roundOutcome carries everything round_complete reports.
type roundOutcome struct {
	round        *models.Round
	winner       *models.PlayerRef
	clueGiver    models.PlayerRef
	players      []*models.Player
	clueMissing  bool
	malusApplied bool
	message      string
}

func roundCompleteMsg(o roundOutcome) map[string]interface{} {
	r := o.round
	msg := map[string]interface{}{
		"type":          "round_complete",
		"winner":        o.winner,
		"word":          r.Word,
		"cluesCount":    len(r.GivenClues),
		"requiredClues": r.RequiredClues,
		"currentPlayer": o.clueGiver,
		"canMalus":      r.CanMalus && !r.MalusApplied,
		"perfect":       r.WordFound && len(r.GivenClues) == r.RequiredClues,
		"players":       o.players,
		"allGuesses":    r.GivenGuesses,
	}
	if o.winner != nil {
		msg["winningGuess"] = r.Word
		for _, g := range r.GivenGuesses {
			if g.PlayerID == o.winner.ID && strings.EqualFold(g.Word, r.Word) {
				msg["winningGuess"] = g.Word
			}
		}
	}
	if o.clueMissing {
		msg["clueMissing"] = true
	}
	if o.malusApplied {
		msg["malusApplied"] = true
		msg["message"] = o.message
	}
	return msg
}
