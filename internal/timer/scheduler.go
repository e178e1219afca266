// internal/timer/scheduler.go
package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/sirupsen/logrus"
)

// Broadcaster sends a JSON-able message to every member of a room group.
type Broadcaster interface {
	Broadcast(room string, msg map[string]interface{})
}

// Expiry is delivered to the expiry handler when a countdown reaches zero.
type Expiry struct {
	Generation    uint64
	Phase         models.Phase
	CurrentPlayer uuid.UUID
}

// ExpiryHandler receives terminal expiries. ctx is cancelled once the
// countdown that produced the expiry is superseded, so handlers that block
// must select on it.
type ExpiryHandler func(ctx context.Context, exp Expiry)

// Scheduler runs at most one countdown per room. Every SwitchTimer or Cancel
// bumps the generation; a countdown re-checks its generation before each tick
// and before delivering its expiry, so a superseded countdown never leaks.
type Scheduler struct {
	room   string
	bc     Broadcaster
	tick   time.Duration
	logger *logrus.Entry

	gen  atomic.Uint64
	left atomic.Int64

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	onExpiry ExpiryHandler
}

// NewScheduler builds a scheduler for room. tick is the duration of one
// countdown second; zero means time.Second.
func NewScheduler(room string, bc Broadcaster, tick time.Duration, logger *logrus.Entry) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		room:   room,
		bc:     bc,
		tick:   tick,
		logger: logger.WithField("room", room),
	}
}

// SetExpiryHandler registers the receiver of terminal expiries. It applies to
// countdowns started after the call.
func (s *Scheduler) SetExpiryHandler(h ExpiryHandler) {
	s.mu.Lock()
	s.onExpiry = h
	s.mu.Unlock()
}

// SwitchTimer supersedes any running countdown and starts a new one of
// seconds ticks. It returns only after the previous countdown has exited.
func (s *Scheduler) SwitchTimer(seconds int, phase models.Phase, currentPlayer uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.gen.Add(1)
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.left.Store(int64(seconds))

	go s.countdown(ctx, done, gen, seconds, phase, currentPlayer, s.onExpiry)

	s.logger.WithFields(logrus.Fields{
		"generation": gen,
		"phase":      phase,
		"seconds":    seconds,
	}).Debug("timer switched")
	return gen
}

// Cancel stops the running countdown without expiry. It is a no-op when idle.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen.Add(1)
	s.stopLocked()
	s.left.Store(0)
}

// stopLocked cancels the active countdown and waits for it. Callers hold mu.
func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

// Generation returns the id of the most recent SwitchTimer or Cancel.
func (s *Scheduler) Generation() uint64 {
	return s.gen.Load()
}

// IsCurrent reports whether gen still identifies the active countdown.
func (s *Scheduler) IsCurrent(gen uint64) bool {
	return s.gen.Load() == gen
}

// TimeLeft is the number of seconds remaining on the active countdown.
func (s *Scheduler) TimeLeft() int {
	return int(s.left.Load())
}

func (s *Scheduler) countdown(ctx context.Context, done chan struct{}, gen uint64, seconds int,
	phase models.Phase, currentPlayer uuid.UUID, onExpiry ExpiryHandler) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for remaining := seconds; remaining > 0; {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.IsCurrent(gen) {
			return
		}
		remaining--
		s.left.Store(int64(remaining))
		s.bc.Broadcast(s.room, map[string]interface{}{
			"type":          "timer_update",
			"timeLeft":      remaining,
			"phase":         phase,
			"currentPlayer": currentPlayer,
		})
	}

	if ctx.Err() != nil || !s.IsCurrent(gen) {
		return
	}
	if onExpiry == nil {
		s.logger.WithField("generation", gen).Debug("timer expired with no handler, dropping")
		return
	}
	onExpiry(ctx, Expiry{Generation: gen, Phase: phase, CurrentPlayer: currentPlayer})
}
