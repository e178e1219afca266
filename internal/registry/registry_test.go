package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/hub"
	"github.com/jason-s-yu/wordclue/internal/models"
	"github.com/jason-s-yu/wordclue/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, idle time.Duration) (*Registry, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	require.NoError(t, store.CreateRoom(context.Background(), &models.Room{Code: "REG001", IsActive: true}))

	settings := session.DefaultSettings()
	settings.IdleTimeout = idle
	r := New(session.Options{
		Store:    store,
		Bus:      hub.New(nil),
		Settings: settings,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r, store
}

func TestGetOrCreateUnknownRoom(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)
	_, err := r.GetOrCreate(context.Background(), "NOPE00")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestGetOrCreateIsSingleton(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)

	var wg sync.WaitGroup
	got := make([]*session.Coordinator, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.GetOrCreate(context.Background(), "REG001")
			assert.NoError(t, err)
			got[i] = c
		}(i)
	}
	wg.Wait()
	for _, c := range got {
		assert.Same(t, got[0], c)
	}
	assert.Equal(t, 1, r.Len())
}

func TestIdleCoordinatorIsReleased(t *testing.T) {
	r, _ := newTestRegistry(t, 20*time.Millisecond)
	first, err := r.GetOrCreate(context.Background(), "REG001")
	require.NoError(t, err)

	select {
	case <-first.Stopped():
	case <-time.After(time.Second):
		t.Fatal("idle coordinator never stopped")
	}
	assert.Equal(t, 0, r.Len())

	second, err := r.GetOrCreate(context.Background(), "REG001")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestShutdownStopsCoordinators(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute)
	c, err := r.GetOrCreate(context.Background(), "REG001")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	<-c.Stopped()
	_, err = r.GetOrCreate(context.Background(), "REG001")
	assert.ErrorIs(t, err, session.ErrCoordinatorStopped)
}
