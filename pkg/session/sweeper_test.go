package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sessionlock/pkg/adapters/memory"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	store, coll, clock := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Insert(ctx, domain.NewRecord(id, "app", 1, nil, 0, domain.ActionNone, clock.Now())))
	}
	require.NoError(t, store.Insert(ctx, domain.NewRecord("keep", "app", 60, nil, 0, domain.ActionNone, clock.Now())))

	sweeper := session.NewSweeper(store, time.Hour, nil)
	assert.Equal(t, int64(0), sweeper.Sweep(ctx))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, int64(3), sweeper.Sweep(ctx))
	assert.Equal(t, 1, coll.Len())
}

func TestSweeper_StartStop(t *testing.T) {
	coll := memory.NewCollection()
	store := session.NewStore(coll)
	ctx := context.Background()

	expired := domain.NewRecord("old", "app", 1, nil, 0, domain.ActionNone, time.Now().Add(-time.Hour))
	require.NoError(t, store.Insert(ctx, expired))

	sweeper := session.NewSweeper(store, 10*time.Millisecond, nil)
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return coll.Len() == 0 }, time.Second, 5*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_ContextCancel(t *testing.T) {
	store := session.NewStore(memory.NewCollection())
	ctx, cancel := context.WithCancel(context.Background())

	sweeper := session.NewSweeper(store, 0, nil)
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper ignored cancellation")
	}
}
