package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/sessionlock/internal/logging"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/observability"
	"github.com/aretw0/sessionlock/pkg/ports"
)

// DefaultTimeoutMinutes is the idle timeout used when a caller passes zero.
const DefaultTimeoutMinutes = 20

// backgroundEvictTimeout bounds the best-effort eviction Fetch starts for expired records.
const backgroundEvictTimeout = 5 * time.Second

// Store coordinates access to session records in a shared collection.
// It keeps no mutable state of its own and is safe for concurrent use.
type Store struct {
	coll           ports.Collection
	now            func() time.Time
	logger         *slog.Logger
	metrics        *observability.Metrics
	defaultTimeout int
}

// Option configures the Store.
type Option func(*Store)

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMetrics records protocol outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithDefaultTimeout sets the idle timeout, in minutes, applied when callers pass zero.
func WithDefaultTimeout(minutes int) Option {
	return func(s *Store) {
		if minutes > 0 {
			s.defaultTimeout = minutes
		}
	}
}

// NewStore creates a Store over the given collection.
func NewStore(coll ports.Collection, opts ...Option) *Store {
	s := &Store{
		coll:           coll,
		now:            time.Now,
		logger:         logging.NewNop(), // Default to no-op
		defaultTimeout: DefaultTimeoutMinutes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns the underlying collection.
func (s *Store) Collection() ports.Collection {
	return s.coll
}

// DefaultTimeout returns the idle timeout applied when callers pass zero.
func (s *Store) DefaultTimeout() int {
	return s.defaultTimeout
}

func (s *Store) timeout(minutes int) int {
	if minutes <= 0 {
		return s.defaultTimeout
	}
	return minutes
}

// NewRecord builds an unlocked record stamped with the store's clock.
// A zero timeout uses the store default.
func (s *Store) NewRecord(id, namespace string, timeoutMinutes int, payload []byte, itemCount int) *domain.Record {
	return domain.NewRecord(id, namespace, s.timeout(timeoutMinutes), payload, itemCount, domain.ActionNone, s.now())
}

// Insert stores a brand-new record. No uniqueness check is made; see InsertFresh.
func (s *Store) Insert(ctx context.Context, rec *domain.Record) error {
	return domain.Unavailable("insert", s.coll.InsertOne(ctx, rec))
}

// InsertFresh clears a dead record under the same key, then inserts rec.
// It is the "new session" path: a live record under the key is replaced, so
// the caller is responsible for not colliding with it.
func (s *Store) InsertFresh(ctx context.Context, rec *domain.Record) error {
	if err := s.EvictIfExpired(ctx, rec.ID, rec.Namespace); err != nil {
		return err
	}
	return s.Insert(ctx, rec)
}

// CreateUninitialized inserts a placeholder with an empty payload, marked
// ActionUninitialized so the first reader initializes it with defaults.
func (s *Store) CreateUninitialized(ctx context.Context, id, namespace string, timeoutMinutes int) error {
	rec := domain.NewRecord(id, namespace, s.timeout(timeoutMinutes), nil, 0, domain.ActionUninitialized, s.now())
	return s.Insert(ctx, rec)
}

// ReleaseAndUpdate stores the new payload, clears the lock and restarts the
// idle timeout, provided the record still carries token.
// A stale token leaves the record untouched and is not an error.
func (s *Store) ReleaseAndUpdate(ctx context.Context, id, namespace string, token domain.LockToken, payload []byte, itemCount, timeoutMinutes int) error {
	timeout := s.timeout(timeoutMinutes)
	expires := domain.ExpiresAt(s.now(), timeout)
	if payload == nil {
		payload = []byte{}
	}

	return s.guardedUpdate(ctx, "release_and_update", id, namespace, token, ports.Update{
		Expires:        &expires,
		TimeoutMinutes: &timeout,
		Locked:         ports.Ptr(false),
		ItemCount:      &itemCount,
		Payload:        payload,
		SetPayload:     true,
	})
}

// ReleaseLock clears the lock and restarts the idle timeout without touching the payload.
// Same token semantics as ReleaseAndUpdate.
func (s *Store) ReleaseLock(ctx context.Context, id, namespace string, token domain.LockToken, timeoutMinutes int) error {
	expires := domain.ExpiresAt(s.now(), s.timeout(timeoutMinutes))
	return s.guardedUpdate(ctx, "release_lock", id, namespace, token, ports.Update{
		Expires: &expires,
		Locked:  ports.Ptr(false),
	})
}

func (s *Store) guardedUpdate(ctx context.Context, op, id, namespace string, token domain.LockToken, upd ports.Update) error {
	key := domain.Key{ID: id, Namespace: namespace}
	ok, err := s.coll.UpdateOne(ctx, ports.Filter{Key: key, LockToken: &token}, upd)
	if err != nil {
		return domain.Unavailable(op, err)
	}
	s.metrics.ObserveGuardedWrite(op, ok)
	if !ok {
		s.logger.Debug("Stale lock token, session superseded",
			"op", op,
			"session_id", id,
			"namespace", namespace,
			"lock_token", token,
		)
	}
	return nil
}

// RefreshExpiration restarts the idle timeout regardless of lock state.
// A missing record is not an error.
func (s *Store) RefreshExpiration(ctx context.Context, id, namespace string, timeoutMinutes int) error {
	expires := domain.ExpiresAt(s.now(), s.timeout(timeoutMinutes))
	_, err := s.coll.UpdateOne(ctx,
		ports.Filter{Key: domain.Key{ID: id, Namespace: namespace}},
		ports.Update{Expires: &expires},
	)
	return domain.Unavailable("refresh_expiration", err)
}

// Evict deletes the record only while it still carries token, so a session
// reacquired by someone else is never destroyed.
func (s *Store) Evict(ctx context.Context, id, namespace string, token domain.LockToken) error {
	ok, err := s.coll.DeleteOne(ctx, ports.Filter{
		Key:       domain.Key{ID: id, Namespace: namespace},
		LockToken: &token,
	})
	if err != nil {
		return domain.Unavailable("evict", err)
	}
	s.metrics.ObserveGuardedWrite("evict", ok)
	return nil
}

// EvictIfExpired deletes the record only if it has expired. No token is
// required: an expired record has no legitimate holder to protect.
func (s *Store) EvictIfExpired(ctx context.Context, id, namespace string) error {
	_, err := s.evictExpired(ctx, domain.Key{ID: id, Namespace: namespace})
	return err
}

func (s *Store) evictExpired(ctx context.Context, key domain.Key) (bool, error) {
	ok, err := s.coll.DeleteOne(ctx, ports.Filter{Key: key, ExpiredBefore: s.now()})
	return ok, domain.Unavailable("evict_if_expired", err)
}

// SweepExpired removes every expired record and returns how many were removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.coll.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, domain.Unavailable("sweep", err)
	}
	s.metrics.ObserveSweep(n)
	return n, nil
}

// List returns every stored record, expired ones included. Used by inspection tooling.
func (s *Store) List(ctx context.Context) ([]*domain.Record, error) {
	records, err := s.coll.List(ctx)
	return records, domain.Unavailable("list", err)
}

// Ping checks that the backing collection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return domain.Unavailable("ping", s.coll.Ping(ctx))
}

// isNotFound reports whether err is the collection's "no document" answer.
func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrRecordNotFound)
}
