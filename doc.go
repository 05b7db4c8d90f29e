/*
Package sessionlock is a shared session-state store with lock-aware access
and time-based eviction.

Many stateless front-end processes keep per-client session state in one
backing database. sessionlock coordinates concurrent access to each session
through a lock stored in the session record itself: acquisition is an atomic
compare-and-swap on the record's lock token, and every release, update or
eviction is scoped to the token the caller was granted. No process holds
client-side locks, so any number of processes can share a collection.

# Concept

A session record is identified by (id, namespace). Each record carries an
expiration instant; once it passes, the record is absent to every reader and
is reclaimed lazily by Fetch or eagerly by the Sweeper.

  - Fetch(exclusive=true) returns the session and a fresh lock token, or
    reports that someone else holds the lock and for how long.
  - ReleaseAndUpdate stores the new state and releases the lock.
  - A caller that was superseded (its token is stale) gets a silent no-op.

# Backends

Records live behind the ports.Collection interface. Memory, Redis and MongoDB
implementations are provided; payloads can be sealed with AES-GCM through the
encryption middleware.

# Usage

	ctx := context.Background()
	svc, err := sessionlock.Open(ctx, sessionlock.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	store := svc.Store
	res, err := store.Fetch(ctx, "session-123", "shop", true)
	if err != nil {
		log.Fatal(err) // backend unavailable
	}
	if res.Locked {
		// Retry later, or break the lock once res.LockAge looks stale.
		return
	}
	// ... mutate state ...
	err = store.ReleaseAndUpdate(ctx, "session-123", "shop", res.LockToken, newState, items, 20)
*/
package sessionlock
