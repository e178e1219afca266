package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTick = 5 * time.Millisecond

// mockBroadcaster collects timer_update events instead of sending them over WS.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (mb *mockBroadcaster) Broadcast(_ string, msg map[string]interface{}) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.events = append(mb.events, msg)
}

func (mb *mockBroadcaster) ticksFor(player uuid.UUID) []int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []int
	for _, ev := range mb.events {
		if ev["currentPlayer"] == player {
			out = append(out, ev["timeLeft"].(int))
		}
	}
	return out
}

type expiryRecorder struct {
	ch chan Expiry
}

func newExpiryRecorder() *expiryRecorder {
	return &expiryRecorder{ch: make(chan Expiry, 16)}
}

func (r *expiryRecorder) handle(ctx context.Context, exp Expiry) {
	select {
	case r.ch <- exp:
	case <-ctx.Done():
	}
}

func TestCountdownTicksThenExpires(t *testing.T) {
	mb := &mockBroadcaster{}
	rec := newExpiryRecorder()
	s := NewScheduler("ROOM01", mb, testTick, nil)
	s.SetExpiryHandler(rec.handle)

	player := uuid.New()
	gen := s.SwitchTimer(3, models.PhaseClue, player)
	assert.Equal(t, 3, s.TimeLeft())

	select {
	case exp := <-rec.ch:
		assert.Equal(t, gen, exp.Generation)
		assert.Equal(t, models.PhaseClue, exp.Phase)
		assert.Equal(t, player, exp.CurrentPlayer)
	case <-time.After(time.Second):
		t.Fatal("expiry was never delivered")
	}
	assert.Equal(t, []int{2, 1, 0}, mb.ticksFor(player))
	assert.True(t, s.IsCurrent(gen))
}

func TestSwitchSupersedesPreviousCountdown(t *testing.T) {
	mb := &mockBroadcaster{}
	rec := newExpiryRecorder()
	s := NewScheduler("ROOM01", mb, testTick, nil)
	s.SetExpiryHandler(rec.handle)

	stale := uuid.New()
	fresh := uuid.New()
	g1 := s.SwitchTimer(2, models.PhaseChoice, stale)
	g2 := s.SwitchTimer(4, models.PhaseClue, fresh)
	require.Greater(t, g2, g1)
	assert.False(t, s.IsCurrent(g1))

	// Once SwitchTimer returned, the old countdown has exited.
	staleTicks := len(mb.ticksFor(stale))

	select {
	case exp := <-rec.ch:
		assert.Equal(t, g2, exp.Generation)
		assert.Equal(t, fresh, exp.CurrentPlayer)
	case <-time.After(time.Second):
		t.Fatal("expiry was never delivered")
	}
	assert.Len(t, mb.ticksFor(stale), staleTicks, "stale countdown kept ticking")
	select {
	case exp := <-rec.ch:
		t.Fatalf("unexpected extra expiry %+v", exp)
	case <-time.After(10 * testTick):
	}
}

func TestGenerationMonotonicUnderConcurrency(t *testing.T) {
	mb := &mockBroadcaster{}
	rec := newExpiryRecorder()
	s := NewScheduler("ROOM01", mb, testTick, nil)
	s.SetExpiryHandler(rec.handle)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SwitchTimer(2, models.PhaseGuess, uuid.New())
		}()
	}
	wg.Wait()
	last := s.Generation()
	assert.Equal(t, uint64(20), last)

	select {
	case exp := <-rec.ch:
		assert.Equal(t, last, exp.Generation)
	case <-time.After(time.Second):
		t.Fatal("expiry was never delivered")
	}
	select {
	case exp := <-rec.ch:
		t.Fatalf("stale expiry leaked: %+v", exp)
	case <-time.After(10 * testTick):
	}
}

func TestCancelSuppressesExpiry(t *testing.T) {
	mb := &mockBroadcaster{}
	rec := newExpiryRecorder()
	s := NewScheduler("ROOM01", mb, testTick, nil)
	s.SetExpiryHandler(rec.handle)

	s.Cancel() // idle no-op
	s.SwitchTimer(3, models.PhaseGuess, uuid.New())
	s.Cancel()
	assert.Equal(t, 0, s.TimeLeft())

	select {
	case exp := <-rec.ch:
		t.Fatalf("cancelled countdown expired: %+v", exp)
	case <-time.After(10 * testTick):
	}
}

func TestExpiryWithoutHandlerIsDropped(t *testing.T) {
	mb := &mockBroadcaster{}
	s := NewScheduler("ROOM01", mb, testTick, nil)
	player := uuid.New()
	s.SwitchTimer(1, models.PhaseChoice, player)

	assert.Eventually(t, func() bool {
		return len(mb.ticksFor(player)) == 1
	}, time.Second, testTick)
}
