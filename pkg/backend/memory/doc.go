// Package memory provides the ephemeral in-memory backend, registered
// under the name "memory". It exists for tests, examples, and scratch
// collections; behavior matches the durable backends modulo durability.
package memory
