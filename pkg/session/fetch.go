package session

import (
	"context"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/observability"
	"github.com/aretw0/sessionlock/pkg/ports"
)

// FetchResult is the outcome of a Fetch.
//
//   - Absent: Record is nil and Locked is false.
//   - Locked: Locked is true; Record carries identity only, LockAge and
//     LockToken describe the current holder. An exclusive fetch that loses
//     the acquisition race always reads as Locked, even if the winner has
//     released by the time of the re-read; LockAge is then zero.
//   - Granted: Record holds the full session. For exclusive fetches
//     LockToken is the caller's new token, to be passed back on release.
type FetchResult struct {
	Record    *domain.Record
	Locked    bool
	LockAge   time.Duration
	LockToken domain.LockToken
	Flags     domain.ActionFlags
}

// Absent reports whether no live session exists under the requested key.
func (r FetchResult) Absent() bool {
	return r.Record == nil && !r.Locked
}

// Fetch reads a record, optionally acquiring its lock. It never blocks on a
// held lock: contention is reported through FetchResult.Locked and the caller
// decides whether to retry or to break a stale lock.
//
// After a successful acquisition the record is read again, so a late release
// by the previous holder that landed before the lock was taken is visible in
// the returned payload.
func (s *Store) Fetch(ctx context.Context, id, namespace string, exclusive bool) (FetchResult, error) {
	key := domain.Key{ID: id, Namespace: namespace}
	now := s.now()

	rec, err := s.coll.FindOne(ctx, key)
	if isNotFound(err) {
		s.metrics.ObserveFetch(observability.FetchAbsent)
		return FetchResult{}, nil
	}
	if err != nil {
		return FetchResult{}, domain.Unavailable("fetch", err)
	}

	if rec.Expired(now) {
		s.metrics.ObserveFetch(observability.FetchExpired)
		s.evictInBackground(key)
		return FetchResult{}, nil
	}

	if rec.Locked {
		s.metrics.ObserveFetch(observability.FetchLocked)
		return lockedResult(rec, now), nil
	}

	if !exclusive {
		s.metrics.ObserveFetch(observability.FetchRead)
		return FetchResult{Record: rec, LockToken: rec.LockToken, Flags: rec.Flags}, nil
	}

	prev := rec.LockToken
	next := prev + 1
	acquired, err := s.coll.UpdateOne(ctx,
		ports.Filter{Key: key, LockToken: &prev, Unlocked: true},
		ports.Update{
			Locked:         ports.Ptr(true),
			LockToken:      &next,
			LockAcquiredAt: &now,
			Flags:          ports.Ptr(domain.ActionNone),
		},
	)
	if err != nil {
		return FetchResult{}, domain.Unavailable("fetch", err)
	}

	if !acquired {
		s.metrics.ObserveFetch(observability.FetchContended)
		return s.reportContention(ctx, key)
	}

	s.metrics.ObserveFetch(observability.FetchAcquired)

	// The caller receives the flags as they were before acquisition; the
	// stored flags are now cleared.
	flags := rec.Flags

	held, err := s.coll.FindOne(ctx, key)
	if isNotFound(err) {
		return FetchResult{}, nil
	}
	if err != nil {
		return FetchResult{}, domain.Unavailable("fetch", err)
	}
	if !held.Locked || held.LockToken != next {
		// Replaced by an insert after acquisition; the new record's holder wins.
		return lockedResult(held, s.now()), nil
	}

	return FetchResult{Record: held, LockToken: next, Flags: flags}, nil
}

// reportContention re-reads a record whose acquisition was lost to a concurrent
// caller, reporting the winner's lock.
func (s *Store) reportContention(ctx context.Context, key domain.Key) (FetchResult, error) {
	now := s.now()
	rec, err := s.coll.FindOne(ctx, key)
	if isNotFound(err) {
		return FetchResult{}, nil
	}
	if err != nil {
		return FetchResult{}, domain.Unavailable("fetch", err)
	}
	if rec.Expired(now) {
		return FetchResult{}, nil
	}

	s.logger.Debug("Lost lock acquisition race",
		"session_id", key.ID,
		"namespace", key.Namespace,
		"lock_token", rec.LockToken,
	)

	// A lost race reads as locked even if the winner has already released.
	return lockedResult(rec, now), nil
}

func lockedResult(rec *domain.Record, now time.Time) FetchResult {
	return FetchResult{
		Record: &domain.Record{
			ID:        rec.ID,
			Namespace: rec.Namespace,
			Locked:    true,
			LockToken: rec.LockToken,
			Payload:   []byte{},
		},
		Locked:    true,
		LockAge:   rec.LockAge(now),
		LockToken: rec.LockToken,
		Flags:     rec.Flags,
	}
}

// evictInBackground removes an expired record without holding up the caller.
// It uses a detached context so request cancellation does not abort it.
func (s *Store) evictInBackground(key domain.Key) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundEvictTimeout)
		defer cancel()

		if _, err := s.evictExpired(ctx, key); err != nil {
			s.metrics.ObserveEvictError()
			s.logger.Warn("Failed to evict expired session",
				"session_id", key.ID,
				"namespace", key.Namespace,
				"error", err,
			)
		}
	}()
}
