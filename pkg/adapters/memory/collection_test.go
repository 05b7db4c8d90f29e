package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sessionlock/pkg/adapters/memory"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCollection_Contract(t *testing.T) {
	coll := memory.NewCollection()
	ports.RunCollectionContract(t, coll)
}

func TestMemoryCollection_Isolation(t *testing.T) {
	coll := memory.NewCollection()
	ctx := context.Background()
	rec := domain.NewRecord("s1", "app", 5, []byte{1}, 1, domain.ActionNone, time.Now())
	require.NoError(t, coll.InsertOne(ctx, rec))

	// Mutating the inserted value or a read copy must not leak into the store.
	rec.Payload[0] = 9
	got, err := coll.FindOne(ctx, rec.Key())
	require.NoError(t, err)
	got.Payload[0] = 8

	again, err := coll.FindOne(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, again.Payload)
}

func TestMemoryCollection_Closed(t *testing.T) {
	coll := memory.NewCollection()
	require.NoError(t, coll.Close())

	ctx := context.Background()
	assert.ErrorIs(t, coll.Ping(ctx), memory.ErrClosed)
	_, err := coll.FindOne(ctx, domain.Key{ID: "s1", Namespace: "app"})
	assert.ErrorIs(t, err, memory.ErrClosed)
}
