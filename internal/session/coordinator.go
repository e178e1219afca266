// internal/session/coordinator.go
package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/hub"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/jason-s-yu/wordclue/internal/round"
	"github.com/jason-s-yu/wordclue/internal/timer"
	"github.com/jason-s-yu/wordclue/internal/words"
	"github.com/sirupsen/logrus"
)

// Conn is one client connection as seen by the coordinator.
type Conn interface {
	hub.Member
	Close(reason string)
}

// Broadcaster is the transport group collaborator.
type Broadcaster interface {
	Broadcast(room string, msg map[string]interface{})
	Join(room string, m hub.Member)
	Leave(room, id string)
}

// connState is either unauthenticated or authenticated.
type connState interface{ isConnState() }

type unauthenticated struct{}

type authenticated struct {
	playerID uuid.UUID
	pseudo   string
}

func (unauthenticated) isConnState() {}
func (authenticated) isConnState()   {}

type liveConn struct {
	conn  Conn
	state connState
}

type eventKind int

const (
	evConnect eventKind = iota
	evIntent
	evDisconnect
	evExpiry
	evRemoval
	evIdle
	evSnapshot
)

type event struct {
	kind     eventKind
	conn     Conn
	intent   Intent
	expiry   timer.Expiry
	playerID uuid.UUID
	token    uint64
	reply    chan interface{}
}

// Options are the coordinator's collaborators.
type Options struct {
	Store    database.Store
	Bus      Broadcaster
	Words    words.Source
	Mirror   round.Mirror
	Settings Settings
	Logger   *logrus.Logger

	// OnIdle is called from the coordinator goroutine right before it stops
	// because nobody has been connected for Settings.IdleTimeout.
	OnIdle func(c *Coordinator)

	// Shuffle orders players at game start. Defaults to a random permutation.
	Shuffle func(ids []uuid.UUID)
}

// Coordinator serializes everything that happens in one room. All state below
// the inbox is owned by the Run goroutine.
type Coordinator struct {
	code     string
	store    database.Store
	bus      Broadcaster
	words    words.Source
	rounds   *round.Manager
	timer    *timer.Scheduler
	settings Settings
	logger   *logrus.Entry
	onIdle   func(c *Coordinator)
	shuffle  func(ids []uuid.UUID)

	inbox   chan event
	stopped chan struct{}

	conns       map[string]*liveConn
	status      Status
	pending     map[uuid.UUID]uint64
	graceTimers map[uuid.UUID]*time.Timer
	removalSeq  uint64
	idleTimer   *time.Timer
	idleGen     uint64
}

// NewCoordinator builds the coordinator for room code. Run must be called to
// start processing.
func NewCoordinator(code string, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("room", code)
	settings := opts.Settings
	if settings.InboxSize <= 0 {
		settings.InboxSize = 64
	}
	if settings.StoreTimeout <= 0 {
		settings.StoreTimeout = 5 * time.Second
	}
	src := opts.Words
	if src == nil {
		src = words.NewGenerator(0, 0.15)
	}
	shuffle := opts.Shuffle
	if shuffle == nil {
		shuffle = func(ids []uuid.UUID) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		}
	}

	c := &Coordinator{
		code:        code,
		store:       opts.Store,
		bus:         opts.Bus,
		words:       src,
		settings:    settings,
		logger:      entry,
		onIdle:      opts.OnIdle,
		shuffle:     shuffle,
		inbox:       make(chan event, settings.InboxSize),
		stopped:     make(chan struct{}),
		conns:       make(map[string]*liveConn),
		status:      StatusLobby,
		pending:     make(map[uuid.UUID]uint64),
		graceTimers: make(map[uuid.UUID]*time.Timer),
	}
	c.rounds = round.NewManager(code, opts.Store, opts.Mirror, entry)
	c.timer = timer.NewScheduler(code, opts.Bus, settings.Tick, entry)
	c.timer.SetExpiryHandler(c.deliverExpiry)
	return c
}

// Code returns the room code.
func (c *Coordinator) Code() string { return c.code }

// Stopped is closed once Run has returned.
func (c *Coordinator) Stopped() <-chan struct{} { return c.stopped }

// Connect registers a new, unauthenticated connection. It blocks until the
// coordinator has accepted it.
func (c *Coordinator) Connect(conn Conn) error {
	reply := make(chan interface{}, 1)
	if err := c.enqueue(event{kind: evConnect, conn: conn, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-c.stopped:
		return ErrCoordinatorStopped
	}
}

// Submit queues a client intent received on conn.
func (c *Coordinator) Submit(conn Conn, in Intent) error {
	return c.enqueue(event{kind: evIntent, conn: conn, intent: in})
}

// Disconnect reports that conn went away without an explicit leave.
func (c *Coordinator) Disconnect(conn Conn) {
	_ = c.enqueue(event{kind: evDisconnect, conn: conn})
}

// Snapshot returns the current room view.
func (c *Coordinator) Snapshot(ctx context.Context) (*RoomSnapshot, error) {
	reply := make(chan interface{}, 1)
	if err := c.enqueue(event{kind: evSnapshot, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case v := <-reply:
		if err, ok := v.(error); ok {
			return nil, err
		}
		return v.(*RoomSnapshot), nil
	case <-c.stopped:
		return nil, ErrCoordinatorStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) enqueue(ev event) error {
	select {
	case <-c.stopped:
		return ErrCoordinatorStopped
	default:
	}
	select {
	case c.inbox <- ev:
		return nil
	case <-c.stopped:
		return ErrCoordinatorStopped
	}
}

// deliverExpiry is the timer's expiry handler. It gives up once the countdown
// is superseded so SwitchTimer never waits on a full inbox.
func (c *Coordinator) deliverExpiry(ctx context.Context, exp timer.Expiry) {
	select {
	case c.inbox <- event{kind: evExpiry, expiry: exp}:
	case <-ctx.Done():
	case <-c.stopped:
	}
}

// Run processes events until ctx is cancelled or the room goes idle.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("coordinator started")
	defer c.shutdown()

	c.maybeArmIdle()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.inbox:
			if c.handle(ctx, ev) {
				return
			}
		}
	}
}

// handle processes a single event and reports whether the coordinator should stop.
func (c *Coordinator) handle(ctx context.Context, ev event) bool {
	opCtx, cancel := context.WithTimeout(ctx, c.settings.StoreTimeout)
	defer cancel()

	switch ev.kind {
	case evConnect:
		c.conns[ev.conn.ID()] = &liveConn{conn: ev.conn, state: unauthenticated{}}
		c.cancelIdle()
		ev.reply <- struct{}{}
	case evIntent:
		c.handleIntent(opCtx, ev.conn, ev.intent)
	case evDisconnect:
		c.handleDisconnect(ev.conn)
	case evExpiry:
		if !c.timer.IsCurrent(ev.expiry.Generation) {
			c.logger.WithField("generation", ev.expiry.Generation).Debug("dropping stale expiry")
			return false
		}
		if err := c.handleExpiry(opCtx, ev.expiry); err != nil {
			c.logger.WithError(err).WithField("phase", ev.expiry.Phase).Error("failed to handle timer expiry")
		}
	case evRemoval:
		if tok, ok := c.pending[ev.playerID]; !ok || tok != ev.token {
			return false
		}
		delete(c.pending, ev.playerID)
		delete(c.graceTimers, ev.playerID)
		if err := c.removePlayer(opCtx, ev.playerID); err != nil {
			c.logger.WithError(err).WithField("player", ev.playerID).Error("failed to remove player after grace period")
		}
		c.maybeArmIdle()
	case evIdle:
		if ev.token != c.idleGen || len(c.conns) > 0 || len(c.pending) > 0 {
			return false
		}
		c.logger.Info("room idle, stopping coordinator")
		if c.onIdle != nil {
			c.onIdle(c)
		}
		return true
	case evSnapshot:
		snap, err := c.snapshot(opCtx)
		if err != nil {
			ev.reply <- err
		} else {
			ev.reply <- snap
		}
	}
	return false
}

func (c *Coordinator) handleIntent(ctx context.Context, conn Conn, in Intent) {
	lc, ok := c.conns[conn.ID()]
	if !ok {
		return
	}
	log := c.logger.WithFields(logrus.Fields{"conn": conn.ID(), "type": in.Type})

	var err error
	switch st := lc.state.(type) {
	case unauthenticated:
		switch in.Type {
		case IntentInit:
			err = c.handleInit(ctx, lc, in)
		case IntentPing:
			conn.Write(map[string]interface{}{"type": "pong"})
		default:
			err = ErrNotAuthorized
		}
	case authenticated:
		err = c.dispatch(ctx, lc, st, in)
	}

	switch {
	case err == nil:
	case isValidationError(err):
		log.WithError(err).Debug("rejected intent")
		conn.Write(errorMsg(err.Error()))
	case isIgnorable(err):
		log.WithError(err).Debug("ignored intent")
	default:
		log.WithError(err).Error("failed to handle intent")
		conn.Write(errorMsg("internal error, please retry"))
	}
}

func (c *Coordinator) dispatch(ctx context.Context, lc *liveConn, who authenticated, in Intent) error {
	switch in.Type {
	case IntentPing:
		lc.conn.Write(map[string]interface{}{"type": "pong"})
		return nil
	case IntentInit:
		return nil
	case IntentMessage:
		return c.handleMessage(who, in)
	case IntentStartGame:
		return c.handleStartGame(ctx, who, in)
	case IntentWordChoice:
		return c.handleWordChoice(ctx, who, in)
	case IntentGiveClue:
		return c.handleGiveClue(ctx, who, in)
	case IntentMakeGuess:
		return c.handleMakeGuess(ctx, who, in)
	case IntentJoinGame:
		return c.handleJoinGame(ctx, lc)
	case IntentStartNewRound:
		return c.handleStartNewRound(ctx, who)
	case IntentApplyMalus:
		return c.handleApplyMalus(ctx, who, in)
	case IntentLeaveRoom:
		return c.handleLeave(ctx, lc, who)
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidIntent, in.Type)
	}
}

// armTimer starts the countdown for phase on behalf of the clue-giver.
func (c *Coordinator) armTimer(phase models.Phase, currentPlayer uuid.UUID) {
	secs := c.settings.ChoiceSeconds
	switch phase {
	case models.PhaseClue:
		secs = c.settings.ClueSeconds
	case models.PhaseGuess:
		secs = c.settings.GuessSeconds
	}
	c.timer.SwitchTimer(secs, phase, currentPlayer)
}

func (c *Coordinator) broadcast(msg map[string]interface{}) {
	c.bus.Broadcast(c.code, msg)
}

func (c *Coordinator) maybeArmIdle() {
	if len(c.conns) > 0 || len(c.pending) > 0 || c.settings.IdleTimeout <= 0 {
		return
	}
	c.cancelIdle()
	gen := c.idleGen
	c.idleTimer = time.AfterFunc(c.settings.IdleTimeout, func() {
		_ = c.enqueue(event{kind: evIdle, token: gen})
	})
}

func (c *Coordinator) cancelIdle() {
	c.idleGen++
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

func (c *Coordinator) shutdown() {
	c.timer.Cancel()
	c.cancelIdle()
	for id, t := range c.graceTimers {
		t.Stop()
		delete(c.graceTimers, id)
	}
	for id, lc := range c.conns {
		c.bus.Leave(c.code, id)
		lc.conn.Close("room closed")
	}
	close(c.stopped)
	c.logger.Info("coordinator stopped")
}

func (c *Coordinator) snapshot(ctx context.Context) (*RoomSnapshot, error) {
	players, err := c.store.ListPlayers(ctx, c.code)
	if err != nil {
		return nil, err
	}
	snap := &RoomSnapshot{
		Code:        c.code,
		Status:      c.status,
		Players:     players,
		TimeLeft:    c.timer.TimeLeft(),
		Connections: len(c.conns),
	}
	if r, ok := c.rounds.CurrentRoundWithPlayer(ctx); ok {
		red := r.Redacted()
		snap.Round = &red
	}
	return snap, nil
}
