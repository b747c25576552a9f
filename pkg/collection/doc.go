/*
Package collection is the write-path facade over the log/storage/state
triad.

Three variants share one read surface:

  - ReadOnly replays and reads.
  - Frozen adds Snapshot on top of ReadOnly; time travel returns one.
  - Collection adds the mutations: Create, Update, Replace, Delete,
    Rename. Create, Update and Replace validate the new data against the
    optional schema before anything is written; Delete and Rename carry
    no new data and are not validated.

Every mutation commits the same way: blob into Storage, entry into the
log, fold into State. The durable log append is the commit point — a
crash between the append and the state apply is recovered by
Regenerate, which clears state and replays the log (bootstrapped by the
latest snapshot when one exists).

Rename emits two entries, source then destination, with the destination
key checked for availability before either is written. The destination
entry starts a fresh chain at the new key; provenance is carried in its
operation parameters ({"from": old key}).

AtTime builds a Frozen collection whose log view is clamped to a
historical cutoff, giving point-in-time reads without touching the live
state.
*/
package collection
