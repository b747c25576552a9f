// Package metrics exposes Prometheus instrumentation for the write path
// and the replay protocol: mutation counters and latencies, blob writes,
// snapshot sizes, and regeneration replay costs. Registration happens at
// init; Handler serves the standard /metrics endpoint for whatever
// process embeds the core.
package metrics
