package sessionlock_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/sessionlock"
	"github.com/aretw0/sessionlock/pkg/adapters/memory"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	svc, err := sessionlock.Open(ctx, sessionlock.DefaultConfig())
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Store.Ping(ctx))
	assert.Equal(t, 20, svc.Store.DefaultTimeout())
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := sessionlock.DefaultConfig()
	cfg.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Prefix = "test:"

	svc, err := sessionlock.Open(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Store.CreateUninitialized(ctx, "s1", "app", 0))
	assert.True(t, mr.Exists("test:record:app:s1"))

	res, err := svc.Store.Fetch(ctx, "s1", "app", true)
	require.NoError(t, err)
	assert.Equal(t, domain.LockToken(1), res.LockToken)
	assert.Equal(t, domain.ActionUninitialized, res.Flags)
}

func TestOpen_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := sessionlock.DefaultConfig()
	cfg.Backend = "redis"
	cfg.Redis.Addr = addr

	_, err := sessionlock.Open(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := sessionlock.DefaultConfig()
	cfg.Backend = "etcd"
	_, err := sessionlock.Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestOpen_EncryptionAndMetrics(t *testing.T) {
	ctx := context.Background()
	raw := memory.NewCollection()

	cfg := sessionlock.DefaultConfig()
	cfg.Encryption.Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	metrics := observability.NewMetrics(observability.WithRegistry(prometheus.NewRegistry()))
	svc, err := sessionlock.Open(ctx, cfg,
		sessionlock.WithCollection(raw),
		sessionlock.WithMetrics(metrics),
	)
	require.NoError(t, err)

	secret := []byte("cart=42")
	require.NoError(t, svc.Store.Insert(ctx, domain.NewRecord("s1", "shop", 5, secret, 1, domain.ActionNone, time.Now())))

	stored, err := raw.FindOne(ctx, domain.Key{ID: "s1", Namespace: "shop"})
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Payload), string(secret))

	res, err := svc.Store.Fetch(ctx, "s1", "shop", false)
	require.NoError(t, err)
	assert.Equal(t, secret, res.Record.Payload)
}

func TestService_Sweeper(t *testing.T) {
	ctx := context.Background()
	cfg := sessionlock.DefaultConfig()
	cfg.SweepInterval = time.Hour

	svc, err := sessionlock.Open(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, svc.Store.Insert(ctx, domain.NewRecord("old", "app", 1, nil, 0, domain.ActionNone, time.Now().Add(-time.Hour))))
	assert.Equal(t, int64(1), svc.NewSweeper().Sweep(ctx))
}

func TestOpen_Tracing(t *testing.T) {
	ctx := context.Background()
	svc, err := sessionlock.Open(ctx, sessionlock.DefaultConfig(),
		sessionlock.WithCollection(memory.NewCollection()),
		sessionlock.WithTracing(observability.WithTracerProvider(noop.NewTracerProvider())),
	)
	require.NoError(t, err)
	defer svc.Close()

	rec := svc.Store.NewRecord("s1", "app", 0, []byte("x"), 1)
	require.NoError(t, svc.Store.Insert(ctx, rec))

	res, err := svc.Store.Fetch(ctx, "s1", "app", true)
	require.NoError(t, err)
	assert.False(t, res.Locked)
	assert.Equal(t, []byte("x"), res.Record.Payload)
}
