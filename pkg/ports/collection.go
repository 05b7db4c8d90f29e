package ports

import (
	"context"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
)

// Filter selects at most one record by key, optionally guarded by lock state and expiry.
// Every guard that is set must hold for the document to match.
type Filter struct {
	Key domain.Key

	// LockToken, when set, requires lock_token to equal this value.
	LockToken *domain.LockToken

	// Unlocked requires lock_held = false.
	Unlocked bool

	// ExpiredBefore, when non-zero, requires expires < ExpiredBefore.
	ExpiredBefore time.Time
}

// Update lists the fields to set on a matched record. Nil fields are left untouched.
type Update struct {
	Expires        *time.Time
	TimeoutMinutes *int
	Locked         *bool
	LockToken      *domain.LockToken
	LockAcquiredAt *time.Time
	ItemCount      *int
	Flags          *domain.ActionFlags

	// Payload replaces the stored payload when SetPayload is true.
	Payload    []byte
	SetPayload bool
}

// Collection is the single logical collection of session records.
// Each method maps to one request/response against the backing database.
type Collection interface {
	// InsertOne stores rec without checking for a live record under the same key;
	// an existing document with that key is replaced.
	InsertOne(ctx context.Context, rec *domain.Record) error

	// FindOne returns the record stored under key.
	// Returns domain.ErrRecordNotFound if no document exists.
	FindOne(ctx context.Context, key domain.Key) (*domain.Record, error)

	// UpdateOne atomically applies upd to the record matching f.
	// It reports whether a document matched; no match is not an error.
	UpdateOne(ctx context.Context, f Filter, upd Update) (bool, error)

	// DeleteOne atomically removes the record matching f.
	// It reports whether a document was deleted; no match is not an error.
	DeleteOne(ctx context.Context, f Filter) (bool, error)

	// DeleteExpired removes every record whose expires is before the given instant.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// List returns every stored record, expired ones included.
	List(ctx context.Context) ([]*domain.Record, error)

	// EnsureIndexes creates the lookup indexes operational tooling expects.
	// Backends without secondary indexes treat it as a no-op.
	EnsureIndexes(ctx context.Context) error

	// Ping checks connectivity to the backing database.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Match evaluates f against rec in memory.
// Backends that cannot push the filter down to the database use it inside their atomic section.
func (f Filter) Match(rec *domain.Record) bool {
	if rec == nil || rec.ID != f.Key.ID || rec.Namespace != f.Key.Namespace {
		return false
	}
	if f.LockToken != nil && rec.LockToken != *f.LockToken {
		return false
	}
	if f.Unlocked && rec.Locked {
		return false
	}
	if !f.ExpiredBefore.IsZero() && !rec.Expires.Before(f.ExpiredBefore) {
		return false
	}
	return true
}

// Apply writes upd onto rec in memory.
func (upd Update) Apply(rec *domain.Record) {
	if upd.Expires != nil {
		rec.Expires = domain.NormalizeTime(*upd.Expires)
	}
	if upd.TimeoutMinutes != nil {
		rec.TimeoutMinutes = *upd.TimeoutMinutes
	}
	if upd.Locked != nil {
		rec.Locked = *upd.Locked
	}
	if upd.LockToken != nil {
		rec.LockToken = *upd.LockToken
	}
	if upd.LockAcquiredAt != nil {
		rec.LockAcquiredAt = domain.NormalizeTime(*upd.LockAcquiredAt)
	}
	if upd.ItemCount != nil {
		rec.ItemCount = *upd.ItemCount
	}
	if upd.Flags != nil {
		rec.Flags = *upd.Flags
	}
	if upd.SetPayload {
		rec.Payload = append([]byte{}, upd.Payload...)
	}
}

// Ptr returns a pointer to v. It keeps Update and Filter literals short.
func Ptr[T any](v T) *T {
	return &v
}
