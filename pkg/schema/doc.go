// Package schema provides the optional structural validators collections
// attach to their write path. Validators are registered by descriptor
// type; "json-schema" ships built in. A rejected document surfaces
// SchemaViolation before any blob or log entry is written.
package schema
