/*
Package boltdb provides the persistent single-file backend, registered
under the name "boltdb".

Records live in one bbolt bucket keyed by ref, with values stored as
JSON. Reads run inside db.View and writes inside db.Update, so every
operation is transactional and concurrent readers never block each
other. Clause evaluation and ordering reuse the shared helpers from the
backend package, keeping query semantics identical to the memory
backend.
*/
package boltdb
