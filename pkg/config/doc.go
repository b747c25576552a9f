// Package config loads the YAML process configuration: a data
// directory, log settings, and named collection descriptors for the CLI
// to operate on.
package config
