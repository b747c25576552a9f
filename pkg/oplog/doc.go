/*
Package oplog implements the append-only operation log of the triad.

Every mutation in jamdb is one log entry; the durable append is the
commit point and everything downstream (materialized state, snapshots,
historical reads) derives from replaying entries in timestamp order.

Timestamps are floating seconds since the epoch, forced strictly
increasing within one logger: if the wall clock regresses or two appends
land in the same instant, the logger bumps by the smallest representable
increment. On open the clock resumes from the largest persisted
timestamp, so monotonicity survives restarts.

Entry refs are content hashes over the entry's canonical form minus the
ref itself; the timestamp makes them unique per append. Entries for one
key chain through Previous, and Create enforces that a supplied Previous
still names the latest entry for that key, surfacing Conflict on stale
writes.

AtTime produces a read-only view whose queries only see entries at or
before the cutoff; time-travel collections are built on such views.
*/
package oplog
