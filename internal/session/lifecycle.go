// internal/session/lifecycle.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/sirupsen/logrus"
)

// handleInit authenticates lc with a session token issued at provisioning.
func (c *Coordinator) handleInit(ctx context.Context, lc *liveConn, in Intent) error {
	var p *models.Player
	sid, err := uuid.Parse(strings.TrimSpace(in.SessionID))
	if err == nil {
		p, err = c.store.GetPlayerBySession(ctx, c.code, sid)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("lookup session: %w", err)
		}
	}
	if err != nil {
		c.logger.WithField("conn", lc.conn.ID()).Info("rejecting unknown session")
		lc.conn.Write(errorMsg(ErrInvalidSession.Error()))
		delete(c.conns, lc.conn.ID())
		lc.conn.Close("invalid session")
		c.maybeArmIdle()
		return nil
	}

	reconnect := false
	if _, ok := c.pending[p.ID]; ok {
		c.cancelRemoval(p.ID)
		reconnect = true
	}
	for id, other := range c.conns {
		a, ok := other.state.(authenticated)
		if !ok || a.playerID != p.ID || id == lc.conn.ID() {
			continue
		}
		reconnect = true
		c.bus.Leave(c.code, id)
		delete(c.conns, id)
		other.conn.Close("session opened elsewhere")
	}
	if !reconnect {
		c.broadcast(playerMsg("player_joined", p.Ref()))
	}

	lc.state = authenticated{playerID: p.ID, pseudo: p.Pseudo}
	c.bus.Join(c.code, lc.conn)
	lc.conn.Write(welcomeMsg(p.ID, p.Pseudo))

	state, err := c.roomStateMsg(ctx)
	if err != nil {
		return err
	}
	lc.conn.Write(state)

	c.logger.WithFields(logrus.Fields{
		"player":    p.ID,
		"pseudo":    p.Pseudo,
		"reconnect": reconnect,
	}).Info("player authenticated")
	return nil
}

// handleDisconnect drops conn and, if it was the player's last connection,
// schedules the player's removal after the grace window.
func (c *Coordinator) handleDisconnect(conn Conn) {
	lc, ok := c.conns[conn.ID()]
	if !ok {
		return
	}
	delete(c.conns, conn.ID())
	c.bus.Leave(c.code, conn.ID())

	if a, ok := lc.state.(authenticated); ok && !c.playerConnected(a.playerID) {
		c.scheduleRemoval(a.playerID)
	}
	c.maybeArmIdle()
}

// handleLeave removes the player right away.
func (c *Coordinator) handleLeave(ctx context.Context, lc *liveConn, who authenticated) error {
	c.cancelRemoval(who.playerID)
	for id, other := range c.conns {
		if a, ok := other.state.(authenticated); ok && a.playerID == who.playerID {
			c.bus.Leave(c.code, id)
			delete(c.conns, id)
			if other != lc {
				other.conn.Close("left room")
			}
		}
	}
	err := c.removePlayer(ctx, who.playerID)
	lc.conn.Close("left room")
	c.maybeArmIdle()
	return err
}

func (c *Coordinator) playerConnected(id uuid.UUID) bool {
	for _, lc := range c.conns {
		if a, ok := lc.state.(authenticated); ok && a.playerID == id {
			return true
		}
	}
	return false
}

func (c *Coordinator) scheduleRemoval(id uuid.UUID) {
	c.cancelRemoval(id)
	c.removalSeq++
	token := c.removalSeq
	c.pending[id] = token
	c.graceTimers[id] = time.AfterFunc(c.settings.DisconnectGrace, func() {
		_ = c.enqueue(event{kind: evRemoval, playerID: id, token: token})
	})
	c.logger.WithFields(logrus.Fields{
		"player": id,
		"grace":  c.settings.DisconnectGrace,
	}).Info("player disconnected, removal scheduled")
}

func (c *Coordinator) cancelRemoval(id uuid.UUID) {
	if t, ok := c.graceTimers[id]; ok {
		t.Stop()
		delete(c.graceTimers, id)
	}
	delete(c.pending, id)
}

// removePlayer deletes the player, hands ownership over and repairs the game
// if the player was needed by the current round.
func (c *Coordinator) removePlayer(ctx context.Context, id uuid.UUID) error {
	p, err := c.store.GetPlayer(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.store.DeletePlayer(ctx, id); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	c.broadcast(playerMsg("player_left", p.Ref()))
	c.logger.WithFields(logrus.Fields{"player": id, "pseudo": p.Pseudo}).Info("player removed")

	remaining, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	if len(remaining) == 0 {
		c.timer.Cancel()
		c.rounds.Reset(ctx)
		c.status = StatusLobby
		room, err := c.room(ctx)
		if err != nil {
			return err
		}
		room.IsActive = false
		room.PlayerOrder = nil
		room.WordChoices = nil
		if err := c.store.UpdateRoom(ctx, room); err != nil {
			return fmt.Errorf("deactivate room: %w", err)
		}
		c.logger.Info("room empty, marked inactive")
		return nil
	}

	if p.IsOwner {
		if err := c.transferOwnership(ctx, remaining); err != nil {
			return err
		}
	}

	if _, err := c.rounds.RemoveFromOrder(ctx, id); err != nil {
		return err
	}

	if c.status != StatusPlaying {
		return nil
	}
	r := c.rounds.Current()
	if r == nil || r.IsCompleted {
		return nil
	}
	if r.CurrentPlayerID == id {
		return c.closeUnsolved(ctx, false)
	}
	return c.checkGuessPass(ctx)
}

// transferOwnership gives the owner flag to the earliest remaining joiner.
func (c *Coordinator) transferOwnership(ctx context.Context, remaining []*models.Player) error {
	for _, p := range remaining {
		if p.IsOwner {
			return nil
		}
	}
	next := remaining[0]
	next.IsOwner = true
	if err := c.store.UpdatePlayer(ctx, next); err != nil {
		return fmt.Errorf("transfer ownership: %w", err)
	}
	c.broadcast(playerMsg("owner_changed", next.Ref()))
	c.logger.WithField("owner", next.ID).Info("ownership transferred")
	return nil
}

func (c *Coordinator) roomStateMsg(ctx context.Context) (map[string]interface{}, error) {
	players, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	msg := map[string]interface{}{
		"type":    "room_state",
		"players": players,
	}
	if c.status != StatusLobby {
		game, err := c.gameInfo(ctx, players)
		if err != nil {
			return nil, err
		}
		msg["game"] = game
	}
	return msg, nil
}
