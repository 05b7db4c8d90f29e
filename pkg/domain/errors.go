package domain

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned by a Collection when no document matches a key.
// The session store folds it into an absent Fetch result; callers of the store never see it.
var ErrRecordNotFound = errors.New("session record not found")

// ErrStoreUnavailable marks every failure of the backing database
// (connectivity, timeouts, driver faults). It is the only fault surfaced by the store.
var ErrStoreUnavailable = errors.New("session store unavailable")

// StoreError wraps a backend failure with the operation that produced it.
// errors.Is(err, ErrStoreUnavailable) holds for every StoreError.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// Unavailable wraps err as a StoreError for op. A nil err stays nil, and an
// error that is already a StoreError is returned unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
