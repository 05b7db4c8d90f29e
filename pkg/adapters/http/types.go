package http

import (
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
)

// InsertRequest is the body of POST /v1/sessions/{namespace}/{id}.
// Payload is base64 in JSON.
type InsertRequest struct {
	Payload        []byte `json:"payload"`
	ItemCount      int    `json:"item_count"`
	TimeoutMinutes int    `json:"timeout_minutes"`

	// Uninitialized creates a placeholder; Payload and ItemCount are ignored.
	Uninitialized bool `json:"uninitialized"`

	// Fresh clears an expired record under the same key first.
	Fresh bool `json:"fresh"`
}

// ReleaseRequest is the body of PUT .../release. LockToken is required.
type ReleaseRequest struct {
	LockToken      *domain.LockToken `json:"lock_token"`
	Payload        []byte            `json:"payload"`
	ItemCount      int               `json:"item_count"`
	TimeoutMinutes int               `json:"timeout_minutes"`
}

// UnlockRequest is the body of POST .../unlock. LockToken is required.
type UnlockRequest struct {
	LockToken      *domain.LockToken `json:"lock_token"`
	TimeoutMinutes int               `json:"timeout_minutes"`
}

// TouchRequest is the optional body of POST .../touch.
type TouchRequest struct {
	TimeoutMinutes int `json:"timeout_minutes"`
}

// RecordResponse is the JSON view of a granted record.
type RecordResponse struct {
	ID             string           `json:"id"`
	Namespace      string           `json:"namespace"`
	Created        time.Time        `json:"created"`
	Expires        time.Time        `json:"expires"`
	Locked         bool             `json:"lock_held"`
	LockToken      domain.LockToken `json:"lock_token"`
	LockAcquiredAt time.Time        `json:"lock_acquired_at"`
	TimeoutMinutes int              `json:"timeout_minutes"`
	Payload        []byte           `json:"payload"`
	ItemCount      int              `json:"payload_item_count"`

	// ActionFlags are the flags observed at read time, before acquisition cleared them.
	ActionFlags string `json:"action_flags"`
}

// LockedResponse is returned with 423 when another holder owns the lock.
type LockedResponse struct {
	ID        string           `json:"id"`
	Namespace string           `json:"namespace"`
	LockAgeMS int64            `json:"lock_age_ms"`
	LockToken domain.LockToken `json:"lock_token"`
}

// ErrorResponse is the body of every 4xx/5xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toRecordResponse(rec *domain.Record, flags domain.ActionFlags) RecordResponse {
	return RecordResponse{
		ID:             rec.ID,
		Namespace:      rec.Namespace,
		Created:        rec.Created,
		Expires:        rec.Expires,
		Locked:         rec.Locked,
		LockToken:      rec.LockToken,
		LockAcquiredAt: rec.LockAcquiredAt,
		TimeoutMinutes: rec.TimeoutMinutes,
		Payload:        rec.Payload,
		ItemCount:      rec.ItemCount,
		ActionFlags:    flags.String(),
	}
}
