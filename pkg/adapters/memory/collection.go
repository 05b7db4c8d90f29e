package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory collection closed")

// Collection implements ports.Collection in memory.
// Safe for concurrent use. The mutex plays the role of the database's
// per-document atomicity, so each conditional write is indivisible.
type Collection struct {
	data   map[domain.Key]*domain.Record
	mu     sync.RWMutex
	closed bool
}

// NewCollection creates a new in-memory collection.
func NewCollection() *Collection {
	return &Collection{
		data: make(map[domain.Key]*domain.Record),
	}
}

// InsertOne stores a copy of rec, replacing any document under the same key.
func (c *Collection) InsertOne(ctx context.Context, rec *domain.Record) error {
	// Copy to ensure isolation, similar to serialization
	stored := rec.Clone()
	stored.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.data[stored.Key()] = stored
	return nil
}

// FindOne returns a copy of the record stored under key.
func (c *Collection) FindOne(ctx context.Context, key domain.Key) (*domain.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	rec, ok := c.data[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// UpdateOne applies upd to the record matching f.
func (c *Collection) UpdateOne(ctx context.Context, f ports.Filter, upd ports.Update) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}

	rec, ok := c.data[f.Key]
	if !ok || !f.Match(rec) {
		return false, nil
	}
	upd.Apply(rec)
	return true, nil
}

// DeleteOne removes the record matching f.
func (c *Collection) DeleteOne(ctx context.Context, f ports.Filter) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}

	rec, ok := c.data[f.Key]
	if !ok || !f.Match(rec) {
		return false, nil
	}
	delete(c.data, f.Key)
	return true, nil
}

// DeleteExpired removes every record that expired before the given instant.
func (c *Collection) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	var n int64
	for key, rec := range c.data {
		if rec.Expires.Before(before) {
			delete(c.data, key)
			n++
		}
	}
	return n, nil
}

// List returns copies of every stored record.
func (c *Collection) List(ctx context.Context) ([]*domain.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	records := make([]*domain.Record, 0, len(c.data))
	for _, rec := range c.data {
		records = append(records, rec.Clone())
	}
	return records, nil
}

// EnsureIndexes is a no-op: the map is already keyed by (id, namespace).
func (c *Collection) EnsureIndexes(ctx context.Context) error {
	return nil
}

// Ping reports whether the collection is still open.
func (c *Collection) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all records.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.data = nil
	return nil
}

// Len returns the number of stored records, expired ones included.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
