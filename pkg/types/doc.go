/*
Package types defines the shared data model for jamdb.

The model follows the log/storage/state triad:

  - Blob: an immutable value addressed by the SHA-256 of its canonical
    JSON form, held in Storage and shared across log entries by ref.
  - LogEntry: one record in the append-only operation log. Entries for a
    single key form a linked list through Previous, starting at a CREATE
    (or a RENAME destination).
  - Document: the materialized current view of one key, derived from the
    log and rebuildable from it at any time.
  - SnapshotPair: one row of a SNAPSHOT blob, pairing a live document's
    latest log ref with its data ref so replay can be bootstrapped.

Descriptors (BackendDescriptor, SchemaDescriptor, CollectionDescriptor)
are the persisted wiring: a collection's metadata document names the
three backends of its triad and an optional schema, and is itself stored
as a Document in the parent namespace's collection.
*/
package types
