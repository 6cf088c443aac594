// Package config defines the typed schema for queuectl's key/value
// configuration table.
//
// Config values are stored as text (see the store package), but every
// recognized key has a fixed type and validation rule. The package's
// schema table maps each key to its parse/validate function and default
// (exposed through Validate, Default, Known and Keys); Values holds a parsed
// snapshot and exposes typed accessors so the scheduler, retry policy and
// API layer never parse strings themselves.
package config
