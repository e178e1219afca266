// internal/session/errors.go
package session

import (
	"errors"

	"github.com/jason-s-yu/wordclue/internal/round"
)

var (
	ErrRoomNotFound   = round.ErrRoomNotFound
	ErrNoActiveRound  = round.ErrNoActiveRound
	ErrRoundCompleted = round.ErrRoundCompleted

	ErrPlayerNotFound     = errors.New("player not found")
	ErrInvalidSession     = errors.New("invalid session")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrDuplicateClue      = errors.New("this clue was already given")
	ErrClueIsSecretWord   = errors.New("the clue cannot be the secret word")
	ErrClueAlreadyGuessed = errors.New("this word was already proposed as a guess")
	ErrWrongPhase         = errors.New("action not allowed in the current phase")
	ErrAlreadyGuessed     = errors.New("already guessed during this pass")
	ErrInvalidIntent      = errors.New("invalid request")
	ErrCoordinatorStopped = errors.New("coordinator stopped")
)

// isValidationError reports whether err should be echoed to the sender.
func isValidationError(err error) bool {
	for _, target := range []error{
		ErrDuplicateClue, ErrClueIsSecretWord, ErrClueAlreadyGuessed,
		ErrInvalidIntent, ErrPlayerNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// isIgnorable reports whether err is an authorization or stale-state failure
// that is dropped without telling the client.
func isIgnorable(err error) bool {
	for _, target := range []error{
		ErrNotAuthorized, ErrWrongPhase, ErrAlreadyGuessed,
		ErrNoActiveRound, ErrRoundCompleted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
