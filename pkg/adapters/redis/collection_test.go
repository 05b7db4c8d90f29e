package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/sessionlock/internal/testutils"
	"github.com/aretw0/sessionlock/pkg/adapters/redis"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...redis.Option) (*miniredis.Miniredis, *redis.Collection) {
	t.Helper()
	mr, client := testutils.StartRedis(t)
	return mr, redis.NewFromClient(client, opts...)
}

func TestRedisCollection_Contract(t *testing.T) {
	_, coll := setup(t)
	ports.RunCollectionContract(t, coll)
}

func TestRedisCollection_Prefix(t *testing.T) {
	mr, coll := setup(t, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	rec := domain.NewRecord("my-session", "web", 10, []byte("data"), 1, domain.ActionNone, time.Now())
	require.NoError(t, coll.InsertOne(ctx, rec))

	// Verify keys in Redis directly
	assert.True(t, mr.Exists("custom:app:record:web:my-session"), "Expected hash with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")
	assert.Equal(t, "data", mr.HGet("custom:app:record:web:my-session", domain.FieldPayload))
	assert.Equal(t, "0", mr.HGet("custom:app:record:web:my-session", domain.FieldLocked))
}

func TestRedisCollection_ConcurrentAcquire(t *testing.T) {
	_, coll := setup(t)
	ctx := context.Background()

	rec := domain.NewRecord("race", "web", 10, nil, 0, domain.ActionNone, time.Now())
	require.NoError(t, coll.InsertOne(ctx, rec))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := time.Now()
			ok, err := coll.UpdateOne(ctx,
				ports.Filter{Key: rec.Key(), LockToken: ports.Ptr(domain.LockToken(0)), Unlocked: true},
				ports.Update{Locked: ports.Ptr(true), LockToken: ports.Ptr(domain.LockToken(1)), LockAcquiredAt: &now})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one caller may acquire the lock")
}

func TestRedisCollection_IndexFollowsExpires(t *testing.T) {
	mr, coll := setup(t)
	ctx := context.Background()

	rec := domain.NewRecord("s1", "web", 10, nil, 0, domain.ActionNone, time.Now())
	rec.Expires = domain.NormalizeTime(time.Now().Add(-time.Minute))
	require.NoError(t, coll.InsertOne(ctx, rec))

	// Refreshing moves the index score, so the sweep must leave the record alone.
	expires := time.Now().Add(10 * time.Minute)
	ok, err := coll.UpdateOne(ctx, ports.Filter{Key: rec.Key()}, ports.Update{Expires: &expires})
	require.NoError(t, err)
	require.True(t, ok)

	score, err := mr.ZScore("sessionlock:index", "sessionlock:record:web:s1")
	require.NoError(t, err)
	assert.Equal(t, float64(expires.UnixMilli()), score)

	n, err := coll.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, mr.Exists("sessionlock:record:web:s1"))
}

func TestRedisCollection_Retention(t *testing.T) {
	mr, coll := setup(t, redis.WithRetention(time.Minute))
	ctx := context.Background()

	rec := domain.NewRecord("s1", "web", 1, nil, 0, domain.ActionNone, time.Now())
	require.NoError(t, coll.InsertOne(ctx, rec))
	assert.Positive(t, mr.TTL("sessionlock:record:web:s1"))

	// Fast Forward past expires + retention
	mr.FastForward(3 * time.Minute)

	_, err := coll.FindOne(ctx, rec.Key())
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	// List prunes the dangling index entry.
	records, err := coll.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	members, err := mr.ZMembers("sessionlock:index")
	if err == nil {
		assert.Empty(t, members)
	}
}

func TestRedisCollection_Unavailable(t *testing.T) {
	mr, coll := setup(t)
	mr.Close()

	_, err := coll.FindOne(context.Background(), domain.Key{ID: "s1", Namespace: "web"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRecordNotFound)
}
