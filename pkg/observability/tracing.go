package observability

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "sessionlock"

// TraceConfig configures TraceCollection.
type TraceConfig struct {
	// TracerName is the instrumentation name (default: "sessionlock").
	TracerName string

	// Provider supplies the tracer. Defaults to the global provider.
	Provider trace.TracerProvider
}

// TraceOption configures TraceCollection.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) TraceOption {
	return func(c *TraceConfig) {
		c.Provider = tp
	}
}

type traced struct {
	next   ports.Collection
	tracer trace.Tracer
}

// TraceCollection wraps next so each operation runs in a client span named
// "sessionlock.<op>", tagged with the session key and the guard that applied.
//
// Configure the global provider in main() to export spans:
//
//	otel.SetTracerProvider(tp)
func TraceCollection(next ports.Collection, opts ...TraceOption) ports.Collection {
	config := TraceConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}
	return &traced{next: next, tracer: config.Provider.Tracer(config.TracerName)}
}

func (c *traced) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "sessionlock."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(time.Now()),
	)
}

func keyAttrs(k domain.Key) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("session.id", k.ID),
		attribute.String("session.namespace", k.Namespace),
	}
}

func filterAttrs(f ports.Filter) []attribute.KeyValue {
	attrs := keyAttrs(f.Key)
	if f.LockToken != nil {
		attrs = append(attrs, attribute.Int64("session.lock_token", int64(*f.LockToken)))
	}
	if f.Unlocked {
		attrs = append(attrs, attribute.Bool("session.require_unlocked", true))
	}
	if !f.ExpiredBefore.IsZero() {
		attrs = append(attrs, attribute.Bool("session.require_expired", true))
	}
	return attrs
}

func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (c *traced) InsertOne(ctx context.Context, rec *domain.Record) error {
	ctx, span := c.start(ctx, "insert", keyAttrs(rec.Key())...)
	err := c.next.InsertOne(ctx, rec)
	finish(span, err)
	return err
}

func (c *traced) FindOne(ctx context.Context, key domain.Key) (*domain.Record, error) {
	ctx, span := c.start(ctx, "find", keyAttrs(key)...)
	rec, err := c.next.FindOne(ctx, key)
	span.SetAttributes(attribute.Bool("session.found", err == nil))
	finish(span, err)
	return rec, err
}

func (c *traced) UpdateOne(ctx context.Context, f ports.Filter, upd ports.Update) (bool, error) {
	ctx, span := c.start(ctx, "update", filterAttrs(f)...)
	ok, err := c.next.UpdateOne(ctx, f, upd)
	span.SetAttributes(attribute.Bool("session.matched", ok))
	finish(span, err)
	return ok, err
}

func (c *traced) DeleteOne(ctx context.Context, f ports.Filter) (bool, error) {
	ctx, span := c.start(ctx, "delete", filterAttrs(f)...)
	ok, err := c.next.DeleteOne(ctx, f)
	span.SetAttributes(attribute.Bool("session.matched", ok))
	finish(span, err)
	return ok, err
}

func (c *traced) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, span := c.start(ctx, "delete_expired")
	n, err := c.next.DeleteExpired(ctx, before)
	span.SetAttributes(attribute.Int64("session.deleted", n))
	finish(span, err)
	return n, err
}

func (c *traced) List(ctx context.Context) ([]*domain.Record, error) {
	ctx, span := c.start(ctx, "list")
	records, err := c.next.List(ctx)
	span.SetAttributes(attribute.Int("session.count", len(records)))
	finish(span, err)
	return records, err
}

func (c *traced) EnsureIndexes(ctx context.Context) error {
	ctx, span := c.start(ctx, "ensure_indexes")
	err := c.next.EnsureIndexes(ctx)
	finish(span, err)
	return err
}

func (c *traced) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

func (c *traced) Close() error {
	return c.next.Close()
}
