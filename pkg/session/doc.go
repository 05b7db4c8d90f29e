/*
Package session implements the session store: the locking and expiration
protocol over a shared collection of session records.

All coordination state lives in the backing collection. The store holds no
client-side locks; exclusivity is data, enforced by conditional writes keyed on
the record's lock token, so independent processes can share one collection.

# Protocol

  - Fetch(exclusive=true) acquires the lock by a compare-and-swap on the
    previous token and lock state, minting token+1. A locked record is
    reported with its lock age and token; the caller decides when a lock is
    stale. Fetch never waits.
  - ReleaseAndUpdate, ReleaseLock and Evict are scoped to the token returned
    at acquisition. A stale token is a silent no-op: someone else superseded
    the session.
  - An expired record is absent. Fetch evicts it in the background; the
    Sweeper reclaims records nobody reads again.

Only backend failures are errors, and they all satisfy
errors.Is(err, domain.ErrStoreUnavailable).
*/
package session
