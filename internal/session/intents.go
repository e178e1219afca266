// internal/session/intents.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/jason-s-yu/wordclue/internal/round"
	"github.com/jason-s-yu/wordclue/internal/timer"
)

func (c *Coordinator) handleMessage(who authenticated, in Intent) error {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return fmt.Errorf("%w: empty message", ErrInvalidIntent)
	}
	c.broadcast(lobbyMsg(text, models.PlayerRef{ID: who.playerID, Pseudo: who.pseudo}))
	return nil
}

func (c *Coordinator) handleStartGame(ctx context.Context, who authenticated, in Intent) error {
	owner, err := c.player(ctx, who.playerID)
	if err != nil {
		return err
	}
	if !owner.IsOwner {
		return ErrNotAuthorized
	}
	if c.status == StatusPlaying {
		return ErrWrongPhase
	}
	maxRounds := c.settings.MaxTotalRounds
	if in.TotalRounds < 1 || (maxRounds > 0 && in.TotalRounds > maxRounds) {
		return fmt.Errorf("%w: totalRounds must be between 1 and %d", ErrInvalidIntent, maxRounds)
	}

	players, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	if len(players) == 0 {
		return fmt.Errorf("%w: no players in room", ErrInvalidIntent)
	}
	order := make([]uuid.UUID, len(players))
	for i, p := range players {
		order[i] = p.ID
	}
	c.shuffle(order)

	var resets []scoreChange
	for _, p := range players {
		if p.Score != 0 {
			resets = append(resets, scoreChange{player: p, delta: -p.Score})
		}
	}

	room, err := c.room(ctx)
	if err != nil {
		return err
	}
	undo, err := c.applyScores(ctx, resets)
	if err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}
	room.StartTurns(order, in.TotalRounds)
	room.WordChoices = c.words.Choices()
	room.IsActive = true
	if err := c.store.UpdateRoom(ctx, room); err != nil {
		undo()
		return fmt.Errorf("persist game start: %w", err)
	}

	c.rounds.Reset(ctx)
	if _, err := c.rounds.StartNewRound(ctx, order[0]); err != nil {
		return err
	}
	c.status = StatusPlaying
	c.armTimer(models.PhaseChoice, order[0])

	msg, err := c.gameStartedMsg(ctx)
	if err != nil {
		return err
	}
	c.broadcast(msg)
	c.logger.WithField("totalRounds", in.TotalRounds).Info("game started")
	return nil
}

func (c *Coordinator) handleWordChoice(ctx context.Context, who authenticated, in Intent) error {
	r := c.rounds.Current()
	if r == nil {
		return ErrNoActiveRound
	}
	if r.CurrentPlayerID != who.playerID {
		return ErrNotAuthorized
	}
	if r.IsCompleted || r.Phase != models.PhaseChoice {
		return ErrWrongPhase
	}

	room, err := c.room(ctx)
	if err != nil {
		return err
	}
	picked := strings.TrimSpace(in.Word)
	var choice *models.WordChoice
	for i := range room.WordChoices {
		if strings.EqualFold(room.WordChoices[i].Word, picked) {
			choice = &room.WordChoices[i]
			break
		}
	}
	if choice == nil {
		return fmt.Errorf("%w: %q is not one of the offered words", ErrInvalidIntent, picked)
	}
	word, required, malus := choice.Word, choice.RequiredClues, choice.CanMalus

	room.WordChoices = nil
	if err := c.store.UpdateRoom(ctx, room); err != nil {
		return fmt.Errorf("clear word choices: %w", err)
	}
	if _, err := c.rounds.UpdatePhase(ctx, models.PhaseClue, round.PhaseFields{
		Word:          &word,
		RequiredClues: &required,
		CanMalus:      &malus,
	}); err != nil {
		return err
	}
	c.armTimer(models.PhaseClue, who.playerID)
	c.broadcast(wordSelectedMsg(word, required))
	return nil
}

func (c *Coordinator) handleGiveClue(ctx context.Context, who authenticated, in Intent) error {
	clue := strings.TrimSpace(in.Clue)
	if clue == "" {
		return fmt.Errorf("%w: empty clue", ErrInvalidIntent)
	}
	r := c.rounds.Current()
	if r == nil {
		return ErrNoActiveRound
	}
	if r.CurrentPlayerID != who.playerID {
		return ErrNotAuthorized
	}
	if r.IsCompleted || r.Phase != models.PhaseClue || r.CluesExhausted() {
		return ErrWrongPhase
	}
	switch {
	case strings.EqualFold(clue, r.Word):
		return ErrClueIsSecretWord
	case r.HasClue(clue):
		return ErrDuplicateClue
	case r.WasGuessed(clue):
		return ErrClueAlreadyGuessed
	}

	if _, err := c.rounds.AddClue(ctx, clue); err != nil {
		return err
	}
	if _, err := c.rounds.UpdatePhase(ctx, models.PhaseGuess, round.PhaseFields{}); err != nil {
		return err
	}
	c.armTimer(models.PhaseGuess, who.playerID)
	c.broadcast(clueGivenMsg(clue, who.playerID))
	return nil
}

func (c *Coordinator) handleMakeGuess(ctx context.Context, who authenticated, in Intent) error {
	guess := strings.TrimSpace(in.Guess)
	if guess == "" {
		return fmt.Errorf("%w: empty guess", ErrInvalidIntent)
	}
	r := c.rounds.Current()
	if r == nil {
		return ErrNoActiveRound
	}
	if r.CurrentPlayerID == who.playerID {
		return ErrNotAuthorized
	}
	if r.IsCompleted || r.Phase != models.PhaseGuess {
		return ErrWrongPhase
	}
	if r.HasGuessed(who.playerID) {
		return ErrAlreadyGuessed
	}

	if strings.EqualFold(guess, r.Word) {
		return c.completeSolved(ctx, r, who.playerID, guess)
	}
	all, _, ts, err := c.rounds.AddGuess(ctx, who.playerID, guess)
	if err != nil {
		return err
	}
	c.broadcast(guessMadeMsg(who.playerID, guess, ts, all))
	return c.checkGuessPass(ctx)
}

// completeSolved scores a correct guess and closes the round. Scores are saved
// first so a failed write leaves the round, its guesses and its timer as they
// were.
func (c *Coordinator) completeSolved(ctx context.Context, r *models.Round, winnerID uuid.UUID, guess string) error {
	clues := len(r.GivenClues)
	winner, err := c.player(ctx, winnerID)
	if err != nil {
		return err
	}
	changes := []scoreChange{{player: winner, delta: clues}}
	if clues == r.RequiredClues {
		giver, err := c.player(ctx, r.CurrentPlayerID)
		switch {
		case err == nil:
			changes = append(changes, scoreChange{player: giver, delta: r.RequiredClues})
		case !errors.Is(err, ErrPlayerNotFound):
			return err
		}
	}
	if _, err := c.applyScores(ctx, changes); err != nil {
		return err
	}

	if _, _, _, err := c.rounds.AddGuess(ctx, winnerID, guess); err != nil {
		return err
	}
	c.timer.Cancel()
	done, err := c.rounds.CompleteRound(ctx, true, &winnerID)
	if err != nil {
		return err
	}
	return c.broadcastRoundComplete(ctx, roundOutcome{round: done})
}

type scoreChange struct {
	player *models.Player
	delta  int
}

// applyScores saves every change in order. When a save fails the changes
// already written are reverted, so either all scores move or none do. The
// returned undo reverts a successful batch.
func (c *Coordinator) applyScores(ctx context.Context, changes []scoreChange) (func(), error) {
	type saved struct {
		player *models.Player
		prev   int
	}
	var written []saved
	undo := func() {
		for i := len(written) - 1; i >= 0; i-- {
			w := written[i]
			w.player.Score = w.prev
			if err := c.store.UpdatePlayer(ctx, w.player); err != nil {
				c.logger.WithError(err).WithField("player", w.player.ID).Error("failed to restore score")
			}
		}
	}
	for _, ch := range changes {
		prev := ch.player.Score
		ch.player.AddScore(ch.delta)
		if err := c.store.UpdatePlayer(ctx, ch.player); err != nil {
			ch.player.Score = prev
			undo()
			return nil, fmt.Errorf("save score of %s: %w", ch.player.ID, err)
		}
		written = append(written, saved{player: ch.player, prev: prev})
	}
	return undo, nil
}

// checkGuessPass ends the guess pass once every player but the clue-giver has guessed.
func (c *Coordinator) checkGuessPass(ctx context.Context) error {
	r := c.rounds.Current()
	if r == nil || r.IsCompleted || r.Phase != models.PhaseGuess {
		return nil
	}
	players, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	for _, p := range players {
		if p.ID != r.CurrentPlayerID && !r.HasGuessed(p.ID) {
			return nil
		}
	}
	return c.endGuessPass(ctx, r)
}

// endGuessPass closes the round when no clue is left, otherwise hands the turn
// back to the clue-giver.
func (c *Coordinator) endGuessPass(ctx context.Context, r *models.Round) error {
	if r.CluesExhausted() {
		return c.closeUnsolved(ctx, false)
	}
	if _, err := c.rounds.UpdatePhase(ctx, models.PhaseClue, round.PhaseFields{}); err != nil {
		return err
	}
	c.armTimer(models.PhaseClue, r.CurrentPlayerID)
	c.broadcast(phaseChangedMsg(models.PhaseClue, r.CurrentPlayerID, c.timer.TimeLeft()))
	return nil
}

func (c *Coordinator) closeUnsolved(ctx context.Context, clueMissing bool) error {
	c.timer.Cancel()
	done, err := c.rounds.CompleteRound(ctx, false, nil)
	if err != nil {
		return err
	}
	return c.broadcastRoundComplete(ctx, roundOutcome{round: done, clueMissing: clueMissing})
}

func (c *Coordinator) handleExpiry(ctx context.Context, exp timer.Expiry) error {
	r := c.rounds.Current()
	if r == nil || r.IsCompleted || r.Phase != exp.Phase {
		return nil
	}
	c.logger.WithField("phase", exp.Phase).Debug("timer expired")

	switch exp.Phase {
	case models.PhaseChoice:
		if _, err := c.rounds.CompleteRound(ctx, false, nil); err != nil {
			return err
		}
		return c.advanceTurn(ctx)
	case models.PhaseClue:
		// The timer is spent, so the round closes even if the penalty is lost.
		giver, err := c.player(ctx, r.CurrentPlayerID)
		if err == nil {
			_, err = c.applyScores(ctx, []scoreChange{{player: giver, delta: -r.RequiredClues}})
		}
		if err != nil && !errors.Is(err, ErrPlayerNotFound) {
			c.logger.WithError(err).Error("failed to penalize clue-giver")
		}
		return c.closeUnsolved(ctx, true)
	case models.PhaseGuess:
		return c.endGuessPass(ctx, r)
	}
	return nil
}

func (c *Coordinator) handleStartNewRound(ctx context.Context, who authenticated) error {
	if c.status != StatusPlaying {
		return ErrWrongPhase
	}
	r := c.rounds.Current()
	if r == nil {
		return ErrNoActiveRound
	}
	if !r.IsCompleted {
		return ErrWrongPhase
	}
	p, err := c.player(ctx, who.playerID)
	if err != nil {
		return err
	}
	if !p.IsOwner && r.CurrentPlayerID != who.playerID {
		return ErrNotAuthorized
	}
	return c.advanceTurn(ctx)
}

// advanceTurn counts the finished round and either starts the next player's
// turn or ends the game.
func (c *Coordinator) advanceTurn(ctx context.Context) error {
	room, err := c.room(ctx)
	if err != nil {
		return err
	}
	players, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}

	room.CompletedRounds++
	next, ok := room.NextTurn()
	if !ok {
		room.WordChoices = nil
		if err := c.store.UpdateRoom(ctx, room); err != nil {
			return fmt.Errorf("persist game end: %w", err)
		}
		c.timer.Cancel()
		c.status = StatusEnded
		sort.SliceStable(players, func(i, j int) bool { return players[i].Score > players[j].Score })
		c.broadcast(gameEndMsg(players))
		c.logger.Info("game ended")
		return nil
	}

	room.WordChoices = c.words.Choices()
	if err := c.store.UpdateRoom(ctx, room); err != nil {
		return fmt.Errorf("persist next turn: %w", err)
	}
	if _, err := c.rounds.StartNewRound(ctx, next); err != nil {
		return err
	}
	c.armTimer(models.PhaseChoice, next)

	c.broadcast(map[string]interface{}{
		"type":         "new_round",
		"nextPlayer":   refFor(players, next),
		"wordChoices":  room.WordChoices,
		"players":      players,
		"currentRound": room.CurrentCycle(),
		"totalRounds":  room.TotalRounds,
		"playerOrder":  room.PlayerOrder,
	})
	return nil
}

func (c *Coordinator) handleApplyMalus(ctx context.Context, who authenticated, in Intent) error {
	r := c.rounds.Current()
	if r == nil {
		return ErrNoActiveRound
	}
	if r.CurrentPlayerID != who.playerID {
		return ErrNotAuthorized
	}
	if !r.IsCompleted {
		return ErrWrongPhase
	}
	if !r.CanMalus {
		return fmt.Errorf("%w: no malus available for this round", ErrInvalidIntent)
	}
	if r.MalusApplied {
		return fmt.Errorf("%w: malus already used", ErrInvalidIntent)
	}

	pseudo := strings.TrimSpace(in.TargetPlayerPseudo)
	players, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	var target *models.Player
	for _, p := range players {
		if p.Pseudo == pseudo {
			target = p
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %q", ErrPlayerNotFound, pseudo)
	}
	if target.ID == who.playerID {
		return fmt.Errorf("%w: cannot apply a malus to yourself", ErrInvalidIntent)
	}

	target.AddScore(-1)
	if err := c.store.UpdatePlayer(ctx, target); err != nil {
		return fmt.Errorf("apply malus: %w", err)
	}
	if err := c.rounds.MarkMalusApplied(ctx); err != nil {
		return err
	}
	return c.broadcastRoundComplete(ctx, roundOutcome{
		round:        c.rounds.Current(),
		malusApplied: true,
		message:      fmt.Sprintf("%s applied a malus to %s", who.pseudo, target.Pseudo),
	})
}

func (c *Coordinator) handleJoinGame(ctx context.Context, lc *liveConn) error {
	if c.status != StatusPlaying || c.rounds.Current() == nil {
		msg, err := c.roomStateMsg(ctx)
		if err != nil {
			return err
		}
		lc.conn.Write(msg)
		return nil
	}
	msg, err := c.gameStartedMsg(ctx)
	if err != nil {
		return err
	}
	lc.conn.Write(msg)
	return nil
}

// broadcastRoundComplete fills in the player fields of o and broadcasts it.
func (c *Coordinator) broadcastRoundComplete(ctx context.Context, o roundOutcome) error {
	players, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	o.players = players
	if o.round.WinnerID != nil {
		ref := refFor(players, *o.round.WinnerID)
		o.winner = &ref
	}
	if snap, ok := c.rounds.CurrentRoundWithPlayer(ctx); ok {
		o.clueGiver = snap.CurrentPlayer
	} else {
		o.clueGiver = refFor(players, o.round.CurrentPlayerID)
	}
	c.broadcast(roundCompleteMsg(o))
	return nil
}

// gameInfo is the state a client needs to resume an ongoing game.
func (c *Coordinator) gameInfo(ctx context.Context, players []*models.Player) (map[string]interface{}, error) {
	room, err := c.room(ctx)
	if err != nil {
		return nil, err
	}
	info := map[string]interface{}{
		"status":       c.status,
		"wordChoices":  room.WordChoices,
		"timeLeft":     c.timer.TimeLeft(),
		"players":      players,
		"playerOrder":  room.PlayerOrder,
		"currentRound": room.CurrentCycle(),
		"totalRounds":  room.TotalRounds,
	}
	if snap, ok := c.rounds.CurrentRoundWithPlayer(ctx); ok {
		red := snap.Redacted()
		info["currentPlayer"] = snap.CurrentPlayer
		info["phase"] = snap.Phase
		info["round"] = red
	}
	return info, nil
}

func (c *Coordinator) gameStartedMsg(ctx context.Context) (map[string]interface{}, error) {
	players, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	msg, err := c.gameInfo(ctx, players)
	if err != nil {
		return nil, err
	}
	msg["type"] = "game_started"
	return msg, nil
}

func (c *Coordinator) player(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	p, err := c.store.GetPlayer(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p, err
}

func (c *Coordinator) room(ctx context.Context) (*models.Room, error) {
	r, err := c.store.GetRoom(ctx, c.code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return r, err
}

func refFor(players []*models.Player, id uuid.UUID) models.PlayerRef {
	for _, p := range players {
		if p.ID == id {
			return p.Ref()
		}
	}
	return models.PlayerRef{ID: id}
}
