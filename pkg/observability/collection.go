package observability

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
)

type instrumented struct {
	next    ports.Collection
	metrics *Metrics
}

// InstrumentCollection wraps next so every operation is counted and timed.
// With nil metrics it returns next unchanged.
func InstrumentCollection(next ports.Collection, metrics *Metrics) ports.Collection {
	if metrics == nil {
		return next
	}
	return &instrumented{next: next, metrics: metrics}
}

func (c *instrumented) observe(op string, start time.Time, err error) {
	c.metrics.opsTotal.WithLabelValues(op).Inc()
	c.metrics.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.opErrors.WithLabelValues(op).Inc()
	}
}

func (c *instrumented) InsertOne(ctx context.Context, rec *domain.Record) error {
	start := time.Now()
	err := c.next.InsertOne(ctx, rec)
	c.observe("insert", start, err)
	return err
}

func (c *instrumented) FindOne(ctx context.Context, key domain.Key) (*domain.Record, error) {
	start := time.Now()
	rec, err := c.next.FindOne(ctx, key)
	if errors.Is(err, domain.ErrRecordNotFound) {
		c.observe("find", start, nil)
	} else {
		c.observe("find", start, err)
	}
	return rec, err
}

func (c *instrumented) UpdateOne(ctx context.Context, f ports.Filter, upd ports.Update) (bool, error) {
	start := time.Now()
	ok, err := c.next.UpdateOne(ctx, f, upd)
	c.observe("update", start, err)
	return ok, err
}

func (c *instrumented) DeleteOne(ctx context.Context, f ports.Filter) (bool, error) {
	start := time.Now()
	ok, err := c.next.DeleteOne(ctx, f)
	c.observe("delete", start, err)
	return ok, err
}

func (c *instrumented) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	n, err := c.next.DeleteExpired(ctx, before)
	c.observe("delete_expired", start, err)
	return n, err
}

func (c *instrumented) List(ctx context.Context) ([]*domain.Record, error) {
	start := time.Now()
	records, err := c.next.List(ctx)
	c.observe("list", start, err)
	return records, err
}

func (c *instrumented) EnsureIndexes(ctx context.Context) error {
	return c.next.EnsureIndexes(ctx)
}

func (c *instrumented) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

func (c *instrumented) Close() error {
	return c.next.Close()
}
