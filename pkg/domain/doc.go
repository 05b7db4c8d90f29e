/*
Package domain contains the core data model of the session store.

It defines the Session Record, its natural key and the error taxonomy shared by
the store and its backends. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Record: one session's identity, timing, lock state and opaque payload.
  - Key: the (id, namespace) pair that identifies a live record.
  - LockToken: the fencing value minted on every exclusive acquisition.
  - ActionFlags: marks placeholder records that still need initialization.
*/
package domain
