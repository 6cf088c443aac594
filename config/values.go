package config

import "time"

// Values is a typed snapshot of the configuration table, built from the
// raw key/value rows the store persists. Values never re-parses or
// re-validates; Load does that once, at snapshot time.
type Values struct {
	maxRetries      int
	backoffBase     int
	backoffFactorMs int
	tickInterval    time.Duration
	saveInterval    time.Duration
}

// Load builds a typed Values snapshot from raw key/value rows. Missing
// keys fall back to their schema default. Load never fails: a stored
// value that somehow fails validation (e.g. corrupted on disk) falls back
// to the default rather than panicking the caller.
func Load(raw map[string]string) Values {
	get := func(key Key) int {
		s, ok := raw[string(key)]
		if !ok {
			s = Default(key)
		}
		n, err := Validate(key, s)
		if err != nil {
			n, _ = Validate(key, Default(key))
		}
		return n
	}
	return Values{
		maxRetries:      get(MaxRetries),
		backoffBase:     get(BackoffBase),
		backoffFactorMs: get(BackoffFactorMs),
		tickInterval:    time.Duration(get(TickIntervalMs)) * time.Millisecond,
		saveInterval:    time.Duration(get(SaveIntervalMs)) * time.Millisecond,
	}
}

// MaxRetries is the default retry cap used when a job's own MaxRetries is nil.
func (v Values) MaxRetries() int { return v.maxRetries }

// BackoffBase is the exponent base used by the retry/backoff policy.
func (v Values) BackoffBase() int { return v.backoffBase }

// BackoffFactorMs is the millisecond multiplier used by the retry/backoff policy.
func (v Values) BackoffFactorMs() int { return v.backoffFactorMs }

// TickInterval is the scheduler's tick period.
func (v Values) TickInterval() time.Duration { return v.tickInterval }

// SaveInterval is the snapshotter's period.
func (v Values) SaveInterval() time.Duration { return v.saveInterval }
