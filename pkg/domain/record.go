package domain

import "time"

// LockToken is the fencing value of a record's lock.
// It increases by one on every successful exclusive acquisition.
type LockToken int64

// ActionFlags tells a caller how to treat the payload of a record it just read.
type ActionFlags int

const (
	// ActionNone marks a record whose payload holds real content.
	ActionNone ActionFlags = 0
	// ActionUninitialized marks a placeholder created with an empty payload,
	// to be populated with defaults on first real access.
	ActionUninitialized ActionFlags = 1
)

func (f ActionFlags) String() string {
	switch f {
	case ActionNone:
		return "none"
	case ActionUninitialized:
		return "uninitialized"
	default:
		return "unknown"
	}
}

// Persisted document field names. Inspection and index tooling depends on them.
const (
	FieldID             = "id"
	FieldNamespace      = "namespace"
	FieldCreated        = "created"
	FieldExpires        = "expires"
	FieldLocked         = "lock_held"
	FieldLockToken      = "lock_token"
	FieldLockAcquiredAt = "lock_acquired_at"
	FieldTimeout        = "timeout_minutes"
	FieldPayload        = "payload"
	FieldItemCount      = "payload_item_count"
	FieldFlags          = "action_flags"
)

// Precision is the timestamp resolution every backend persists.
const Precision = time.Millisecond

// Key identifies a record: the caller's session id within an application namespace.
type Key struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
}

func (k Key) String() string {
	return k.Namespace + "/" + k.ID
}

// Record is the stored unit representing one client's session state and lock metadata.
type Record struct {
	ID             string      `json:"id"`
	Namespace      string      `json:"namespace"`
	Created        time.Time   `json:"created"`
	Expires        time.Time   `json:"expires"`
	Locked         bool        `json:"lock_held"`
	LockToken      LockToken   `json:"lock_token"`
	LockAcquiredAt time.Time   `json:"lock_acquired_at"`
	TimeoutMinutes int         `json:"timeout_minutes"`
	Payload        []byte      `json:"payload"`
	ItemCount      int         `json:"payload_item_count"`
	Flags          ActionFlags `json:"action_flags"`
}

// NewRecord builds an unlocked record created at now.
// The token starts at zero so the first acquisition mints token 1.
func NewRecord(id, namespace string, timeoutMinutes int, payload []byte, itemCount int, flags ActionFlags, now time.Time) *Record {
	if payload == nil {
		payload = []byte{}
	}
	r := &Record{
		ID:             id,
		Namespace:      namespace,
		Created:        now,
		Expires:        ExpiresAt(now, timeoutMinutes),
		LockAcquiredAt: now,
		TimeoutMinutes: timeoutMinutes,
		Payload:        payload,
		ItemCount:      itemCount,
		Flags:          flags,
	}
	r.Normalize()
	return r
}

// ExpiresAt derives an expiration instant. It is the only place expires is computed.
func ExpiresAt(now time.Time, timeoutMinutes int) time.Time {
	return now.Add(time.Duration(timeoutMinutes) * time.Minute)
}

// NormalizeTime converts t to local time at the persisted precision.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Truncate(Precision).Local()
}

// Normalize brings every timestamp to local time at millisecond precision.
// Backends call it after each read, mirroring what NewRecord does on write,
// so that records from different drivers stay comparable.
func (r *Record) Normalize() {
	r.Created = NormalizeTime(r.Created)
	r.Expires = NormalizeTime(r.Expires)
	r.LockAcquiredAt = NormalizeTime(r.LockAcquiredAt)
	if r.Payload == nil {
		r.Payload = []byte{}
	}
}

// Key returns the natural key of the record.
func (r *Record) Key() Key {
	return Key{ID: r.ID, Namespace: r.Namespace}
}

// Expired reports whether the record is logically dead at now.
func (r *Record) Expired(now time.Time) bool {
	return r.Expires.Before(now)
}

// LockAge is how long the current lock has been held. Zero when unlocked.
func (r *Record) LockAge(now time.Time) time.Duration {
	if !r.Locked {
		return 0
	}
	age := now.Sub(r.LockAcquiredAt)
	if age < 0 {
		return 0
	}
	return age
}

// Clone returns a deep copy, so callers cannot mutate stored state through shared slices.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Payload = append([]byte(nil), r.Payload...)
	return &c
}
