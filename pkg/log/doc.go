/*
Package log owns the process-wide zerolog root for jamdb.

The root logger discards output until Init runs, so core packages log
unconditionally and embedders that never call Init stay silent. Init
parses the configured level onto the logger itself instead of touching
zerolog's global filter, leaving host processes free to run their own
zerolog configuration alongside.

Packages derive children with WithComponent, WithCollection, or
WithBackend so every line carries enough context to trace a mutation
through the collection, logger, and backend layers.
*/
package log
