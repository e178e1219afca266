// internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/session"
	"github.com/sirupsen/logrus"
)

// ErrRoomNotFound is returned when no room record exists for the code.
var ErrRoomNotFound = session.ErrRoomNotFound

// Registry maps room codes to their running coordinators. A coordinator is
// spawned on first use and removed once it reports itself idle.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*session.Coordinator

	opts   session.Options
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a registry that builds coordinators from opts. opts.OnIdle is
// overwritten by the registry.
func New(opts session.Options) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		rooms:  make(map[string]*session.Coordinator),
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// GetOrCreate returns the coordinator for code, starting one if needed.
func (r *Registry) GetOrCreate(ctx context.Context, code string) (*session.Coordinator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.rooms[code]; ok {
		select {
		case <-c.Stopped():
			delete(r.rooms, code)
		default:
			return c, nil
		}
	}
	if r.ctx.Err() != nil {
		return nil, session.ErrCoordinatorStopped
	}

	if _, err := r.opts.Store.GetRoom(ctx, code); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}

	opts := r.opts
	opts.OnIdle = r.release
	c := session.NewCoordinator(code, opts)
	r.rooms[code] = c

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		c.Run(r.ctx)
	}()
	r.logger.WithField("room", code).Debug("coordinator spawned")
	return c, nil
}

// Get returns the running coordinator for code, if any.
func (r *Registry) Get(code string) (*session.Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rooms[code]
	return c, ok
}

// Len is the number of registered coordinators.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// release drops c if it is still the registered coordinator for its room.
func (r *Registry) release(c *session.Coordinator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[c.Code()]; ok && cur == c {
		delete(r.rooms, c.Code())
		r.logger.WithField("room", c.Code()).Debug("coordinator released")
	}
}

// Shutdown stops every coordinator and waits for them to exit or ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.mu.Lock()
		r.rooms = make(map[string]*session.Coordinator)
		r.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
