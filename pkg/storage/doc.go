/*
Package storage implements the content-addressed blob store of the triad.

A blob's ref is the SHA-256 hex digest of its canonical JSON
serialization, so identical data always produces an identical ref and
concurrent writers dedup on ref rather than racing. Blobs are never
mutated and the core never deletes them; log entries reference them
freely across collections sharing one Storage.
*/
package storage
