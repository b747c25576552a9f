// Package state implements the materialized document view derived from
// the operation log. Apply is the deterministic reducer: replaying the
// same entries in the same order always rebuilds the same view, which is
// what makes State a disposable cache and the log the source of truth.
package state
