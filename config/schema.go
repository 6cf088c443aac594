package config

import (
	"fmt"
	"strconv"
)

// Key identifies one recognized configuration entry.
type Key string

// Recognized configuration keys.
const (
	MaxRetries      Key = "max_retries"
	BackoffBase     Key = "backoff_base"
	BackoffFactorMs Key = "backoff_factor_ms"
	TickIntervalMs  Key = "tick_interval_ms"
	SaveIntervalMs  Key = "save_interval_ms"
)

// field describes how to parse and validate one key's textual value.
type field struct {
	parse   func(string) (int, error)
	min     int
	hasMin  bool
	dflt    int
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: not an integer: %q", s)
	}
	return n, nil
}

// schema is the fixed set of recognized keys and their constraints.
var schema = map[Key]field{
	MaxRetries:      {parse: parseInt, min: 0, hasMin: true, dflt: 3},
	BackoffBase:     {parse: parseInt, min: 1, hasMin: true, dflt: 2},
	BackoffFactorMs: {parse: parseInt, min: 0, hasMin: true, dflt: 1000},
	TickIntervalMs:  {parse: parseInt, min: 50, hasMin: true, dflt: 200},
	SaveIntervalMs:  {parse: parseInt, min: 1000, hasMin: true, dflt: 5000},
}

// Known reports whether key is a recognized configuration key.
func Known(key string) bool {
	_, ok := schema[Key(key)]
	return ok
}

// Keys returns every recognized configuration key.
func Keys() []Key {
	ret := make([]Key, 0, len(schema))
	for k := range schema {
		ret = append(ret, k)
	}
	return ret
}

// Default returns the string form of key's default value.
func Default(key Key) string {
	return strconv.Itoa(schema[key].dflt)
}

// Validate parses and range-checks value for key. An unknown key is
// always a validation error; a known key with an out-of-range value is
// also a validation error.
func Validate(key Key, value string) (int, error) {
	f, ok := schema[key]
	if !ok {
		return 0, fmt.Errorf("config: unknown key %q", key)
	}
	n, err := f.parse(value)
	if err != nil {
		return 0, err
	}
	if f.hasMin && n < f.min {
		return 0, fmt.Errorf("config: %s must be >= %d, got %d", key, f.min, n)
	}
	return n, nil
}
