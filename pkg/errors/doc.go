/*
Package errors defines the transport-independent error kinds raised by the
core: NotFound, KeyExists, SchemaViolation, JSONPatchTestFailed, Conflict,
BadRequest, and Backend.

Each error carries a code, title, and detail so outer layers can serialize
it without inspecting internals. Validation and precondition failures pass
through unmodified; backend failures are wrapped with Backend and expose
the cause through Unwrap. Matching is by kind: errors.Is(err, ErrNotFound)
holds for any not-found error regardless of its detail.
*/
package errors
