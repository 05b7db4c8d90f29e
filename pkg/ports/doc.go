/*
Package ports defines the driven ports (interfaces) of the session store.

These interfaces decouple the locking protocol from the document database that
persists the records, allowing the store to work with various backends
(in-memory, Redis, MongoDB) and to be decorated by middleware.

# Key Interfaces

  - Collection: document CRUD over session records where every write is a
    single conditional (compare-and-swap style) operation.
*/
package ports
