/*
Package backend defines the pluggable store contract consumed by the
storage, oplog, and state layers, plus the query language backends must
evaluate.

A Backend is a ref-addressed record store with predicate queries. Clauses
are (field, op, value) triples with ops eq, in, gt, ge, lt, and le;
orderings sort by a field ascending or descending. The special field "ref"
addresses the record's ref rather than its data.

Backends are pluggable by name: implementations call Register from init,
and FromDescriptor instantiates whichever backend a persisted descriptor
names. Two implementations ship with jamdb:

  - memory: ephemeral maps, for tests and scratch collections
  - boltdb: a single-file bbolt store, for durable collections

Behavior is identical modulo durability; the shared Matches and Sort
helpers keep clause evaluation uniform across implementations.
*/
package backend
