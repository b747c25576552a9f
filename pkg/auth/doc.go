// Package auth carries the permissions model referenced by collection
// metadata: a mapping from principal selector to an access bitmask
// (NONE, READ, WRITE, ADMIN). Authentication providers that resolve the
// opaque user id live outside the core.
package auth
