package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/sessionlock/pkg/adapters/memory"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordingProvider remembers span names and delegates span creation to noop.
type recordingProvider struct {
	embedded.TracerProvider

	mu    sync.Mutex
	names []string
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{p: p, next: noop.NewTracerProvider().Tracer("")}
}

func (p *recordingProvider) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.names...)
}

type recordingTracer struct {
	embedded.Tracer

	p    *recordingProvider
	next trace.Tracer
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.p.mu.Lock()
	t.p.names = append(t.p.names, name)
	t.p.mu.Unlock()
	return t.next.Start(ctx, name, opts...)
}

func TestTraceCollection_Contract(t *testing.T) {
	ports.RunCollectionContract(t, TraceCollection(memory.NewCollection()))
}

func TestTraceCollection_Spans(t *testing.T) {
	tp := &recordingProvider{}
	coll := TraceCollection(memory.NewCollection(), WithTracerProvider(tp), WithTracerName("test"))
	ctx := context.Background()

	rec := domain.NewRecord("s1", "app", 5, nil, 0, domain.ActionNone, time.Now())
	require.NoError(t, coll.InsertOne(ctx, rec))
	_, err := coll.FindOne(ctx, rec.Key())
	require.NoError(t, err)
	_, err = coll.UpdateOne(ctx, ports.Filter{Key: rec.Key(), Unlocked: true}, ports.Update{Locked: ports.Ptr(true)})
	require.NoError(t, err)
	_, err = coll.DeleteOne(ctx, ports.Filter{Key: rec.Key()})
	require.NoError(t, err)
	_, err = coll.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	require.NoError(t, coll.Ping(ctx))

	assert.Equal(t, []string{
		"sessionlock.insert",
		"sessionlock.find",
		"sessionlock.update",
		"sessionlock.delete",
		"sessionlock.delete_expired",
	}, tp.Names())
}
