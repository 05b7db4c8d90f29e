package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCollectionContract runs a suite of tests to verify that a Collection implementation
// adheres to the defined interface contract. Every subtest uses its own keys, so the
// collection may be shared with other data.
func RunCollectionContract(t *testing.T, coll Collection) {
	ctx := context.Background()
	ns := "contract-" + time.Now().Format("20060102150405.000000")
	seq := 0
	newRecord := func(timeout int, payload []byte) *domain.Record {
		seq++
		return domain.NewRecord(fmt.Sprintf("s%d", seq), ns, timeout, payload, len(payload), domain.ActionNone, time.Now())
	}

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, coll.Ping(ctx))
		require.NoError(t, coll.EnsureIndexes(ctx))
	})

	t.Run("Insert and Find", func(t *testing.T) {
		rec := newRecord(20, []byte{0x00, 0x01, 0xff})
		rec.Flags = domain.ActionUninitialized
		require.NoError(t, coll.InsertOne(ctx, rec))

		got, err := coll.FindOne(ctx, rec.Key())
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.Namespace, got.Namespace)
		assert.Equal(t, rec.Payload, got.Payload)
		assert.Equal(t, rec.ItemCount, got.ItemCount)
		assert.Equal(t, rec.TimeoutMinutes, got.TimeoutMinutes)
		assert.Equal(t, rec.LockToken, got.LockToken)
		assert.Equal(t, domain.ActionUninitialized, got.Flags)
		assert.False(t, got.Locked)
		assert.WithinDuration(t, rec.Created, got.Created, domain.Precision)
		assert.WithinDuration(t, rec.Expires, got.Expires, domain.Precision)
		assert.Equal(t, time.Local, got.Expires.Location(), "timestamps are normalized to local time")
	})

	t.Run("Find Non-Existent", func(t *testing.T) {
		_, err := coll.FindOne(ctx, domain.Key{ID: "missing", Namespace: ns})
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Namespaces Partition Keys", func(t *testing.T) {
		rec := newRecord(20, []byte("a"))
		require.NoError(t, coll.InsertOne(ctx, rec))

		_, err := coll.FindOne(ctx, domain.Key{ID: rec.ID, Namespace: ns + "-other"})
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Insert Replaces Same Key", func(t *testing.T) {
		first := newRecord(20, []byte("first"))
		require.NoError(t, coll.InsertOne(ctx, first))

		second := first.Clone()
		second.Payload = []byte("second")
		second.LockToken = 9
		require.NoError(t, coll.InsertOne(ctx, second))

		got, err := coll.FindOne(ctx, first.Key())
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got.Payload)
		assert.Equal(t, domain.LockToken(9), got.LockToken)

		records, err := coll.List(ctx)
		require.NoError(t, err)
		n := 0
		for _, r := range records {
			if r.Key() == first.Key() {
				n++
			}
		}
		assert.Equal(t, 1, n)
	})

	t.Run("Conditional Lock Acquisition", func(t *testing.T) {
		rec := newRecord(20, nil)
		require.NoError(t, coll.InsertOne(ctx, rec))

		now := time.Now()
		acquire := func() (bool, error) {
			return coll.UpdateOne(ctx,
				Filter{Key: rec.Key(), LockToken: Ptr(domain.LockToken(0)), Unlocked: true},
				Update{
					Locked:         Ptr(true),
					LockToken:      Ptr(domain.LockToken(1)),
					LockAcquiredAt: &now,
					Flags:          Ptr(domain.ActionNone),
				})
		}

		ok, err := acquire()
		require.NoError(t, err)
		assert.True(t, ok, "first acquisition must match")

		ok, err = acquire()
		require.NoError(t, err)
		assert.False(t, ok, "second acquisition must not match a locked record")

		got, err := coll.FindOne(ctx, rec.Key())
		require.NoError(t, err)
		assert.True(t, got.Locked)
		assert.Equal(t, domain.LockToken(1), got.LockToken)
		assert.WithinDuration(t, now, got.LockAcquiredAt, domain.Precision)
	})

	t.Run("Token Guarded Update", func(t *testing.T) {
		rec := newRecord(20, []byte("old"))
		rec.Locked = true
		rec.LockToken = 4
		require.NoError(t, coll.InsertOne(ctx, rec))

		expires := time.Now().Add(5 * time.Minute)
		upd := Update{
			Expires:        &expires,
			TimeoutMinutes: Ptr(5),
			Locked:         Ptr(false),
			ItemCount:      Ptr(2),
			Payload:        []byte("new"),
			SetPayload:     true,
		}

		ok, err := coll.UpdateOne(ctx, Filter{Key: rec.Key(), LockToken: Ptr(domain.LockToken(3))}, upd)
		require.NoError(t, err)
		assert.False(t, ok, "stale token must not match")

		got, err := coll.FindOne(ctx, rec.Key())
		require.NoError(t, err)
		assert.Equal(t, []byte("old"), got.Payload, "stale update must not mutate the record")
		assert.True(t, got.Locked)

		ok, err = coll.UpdateOne(ctx, Filter{Key: rec.Key(), LockToken: Ptr(domain.LockToken(4))}, upd)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err = coll.FindOne(ctx, rec.Key())
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), got.Payload)
		assert.Equal(t, 2, got.ItemCount)
		assert.Equal(t, 5, got.TimeoutMinutes)
		assert.False(t, got.Locked)
		assert.Equal(t, domain.LockToken(4), got.LockToken, "release keeps the token")
		assert.WithinDuration(t, expires, got.Expires, domain.Precision)
	})

	t.Run("Update Missing Record", func(t *testing.T) {
		ok, err := coll.UpdateOne(ctx, Filter{Key: domain.Key{ID: "missing", Namespace: ns}}, Update{Locked: Ptr(false)})
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = coll.FindOne(ctx, domain.Key{ID: "missing", Namespace: ns})
		assert.ErrorIs(t, err, domain.ErrRecordNotFound, "update must never upsert")
	})

	t.Run("Empty Payload Update", func(t *testing.T) {
		rec := newRecord(20, []byte("x"))
		require.NoError(t, coll.InsertOne(ctx, rec))

		ok, err := coll.UpdateOne(ctx, Filter{Key: rec.Key()}, Update{Payload: []byte{}, SetPayload: true})
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := coll.FindOne(ctx, rec.Key())
		require.NoError(t, err)
		assert.Empty(t, got.Payload)
	})

	t.Run("Token Guarded Delete", func(t *testing.T) {
		rec := newRecord(20, nil)
		rec.LockToken = 2
		require.NoError(t, coll.InsertOne(ctx, rec))

		ok, err := coll.DeleteOne(ctx, Filter{Key: rec.Key(), LockToken: Ptr(domain.LockToken(1))})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = coll.DeleteOne(ctx, Filter{Key: rec.Key(), LockToken: Ptr(domain.LockToken(2))})
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = coll.FindOne(ctx, rec.Key())
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Expiry Guarded Delete", func(t *testing.T) {
		live := newRecord(20, nil)
		dead := newRecord(20, nil)
		dead.Expires = domain.NormalizeTime(time.Now().Add(-2 * time.Minute))
		require.NoError(t, coll.InsertOne(ctx, live))
		require.NoError(t, coll.InsertOne(ctx, dead))

		now := time.Now()
		ok, err := coll.DeleteOne(ctx, Filter{Key: live.Key(), ExpiredBefore: now})
		require.NoError(t, err)
		assert.False(t, ok, "live record must survive an expiry guarded delete")

		ok, err = coll.DeleteOne(ctx, Filter{Key: dead.Key(), ExpiredBefore: now})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Delete Expired and List", func(t *testing.T) {
		live := newRecord(20, nil)
		dead := newRecord(20, nil)
		dead.Expires = domain.NormalizeTime(time.Now().Add(-time.Minute))
		require.NoError(t, coll.InsertOne(ctx, live))
		require.NoError(t, coll.InsertOne(ctx, dead))

		records, err := coll.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keysOf(records), dead.Key())
		assert.Contains(t, keysOf(records), live.Key())

		n, err := coll.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		records, err = coll.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, keysOf(records), dead.Key())
		assert.Contains(t, keysOf(records), live.Key())
	})
}

func keysOf(records []*domain.Record) []domain.Key {
	keys := make([]domain.Key, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key())
	}
	return keys
}
