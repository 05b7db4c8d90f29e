package observability

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sessionlock/pkg/adapters/memory"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	return NewMetrics(WithRegistry(prometheus.NewRegistry()))
}

func TestInstrumentCollection_Contract(t *testing.T) {
	coll := InstrumentCollection(memory.NewCollection(), newTestMetrics())
	ports.RunCollectionContract(t, coll)
}

func TestInstrumentCollection_Counts(t *testing.T) {
	m := newTestMetrics()
	inner := memory.NewCollection()
	coll := InstrumentCollection(inner, m)
	ctx := context.Background()

	rec := domain.NewRecord("s1", "app", 5, nil, 0, domain.ActionNone, time.Now())
	require.NoError(t, coll.InsertOne(ctx, rec))
	_, err := coll.FindOne(ctx, domain.Key{ID: "missing", Namespace: "app"})
	require.ErrorIs(t, err, domain.ErrRecordNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opsTotal.WithLabelValues("find")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.opErrors.WithLabelValues("find")), "a miss is not an error")

	require.NoError(t, inner.Close())
	_, err = coll.FindOne(ctx, rec.Key())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opErrors.WithLabelValues("find")))
}

func TestInstrumentCollection_NilMetrics(t *testing.T) {
	inner := memory.NewCollection()
	assert.Same(t, inner, InstrumentCollection(inner, nil).(*memory.Collection))
}

func TestMetrics_Observe(t *testing.T) {
	m := newTestMetrics()
	m.ObserveFetch(FetchAcquired)
	m.ObserveFetch(FetchAcquired)
	m.ObserveGuardedWrite("release_and_update", false)
	m.ObserveSweep(3)
	m.ObserveSweep(0)
	m.ObserveEvictError()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues(FetchAcquired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releases.WithLabelValues("release_and_update", "stale")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweptTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictErrors))

	// A nil *Metrics is a valid no-op recorder.
	var none *Metrics
	none.ObserveFetch(FetchRead)
	none.ObserveGuardedWrite("evict", true)
	none.ObserveSweep(1)
	none.ObserveEvictError()
}
