package queuectl

import (
	"time"

	"github.com/queuectl/queuectl/config"
	"github.com/queuectl/queuectl/job"
)

// MaxBackoff is the ceiling every computed retry delay saturates to.
const MaxBackoff = 24 * time.Hour

var maxBackoffMs = int64(MaxBackoff / time.Millisecond)

// Delay computes base^attempts * factorMs in integer milliseconds,
// saturating to MaxBackoff instead of overflowing. base is clamped to at
// least 1 (the config schema already enforces this; the clamp here is a
// last line of defense, not a validation path).
func Delay(base, factorMs, attempts int) time.Duration {
	if factorMs <= 0 {
		return 0
	}
	if base < 1 {
		base = 1
	}
	ceiling := maxBackoffMs / int64(factorMs)
	if ceiling < 1 {
		return MaxBackoff
	}

	pow := int64(1)
	for i := 0; i < attempts; i++ {
		pow *= int64(base)
		if pow > ceiling {
			return MaxBackoff
		}
	}

	ms := pow * int64(factorMs)
	if ms > maxBackoffMs {
		return MaxBackoff
	}
	return time.Duration(ms) * time.Millisecond
}

// RetryDecision is the outcome of applying the retry/backoff policy to a
// failed job: either a fresh Pending row with a delayed RunAfter, or a
// Dead row once the retry budget is exhausted.
type RetryDecision struct {
	Attempts int
	State    job.State
	RunAfter time.Time
}

// decideRetry applies the retry/backoff policy to a job that just
// reported failure. j.MaxRetries, if set, overrides cfg.MaxRetries for
// this job only.
func decideRetry(j *job.Job, cfg config.Values, now time.Time) RetryDecision {
	newAttempts := j.Attempts + 1

	effectiveMaxRetries := cfg.MaxRetries()
	if j.MaxRetries != nil {
		effectiveMaxRetries = *j.MaxRetries
	}

	if newAttempts > effectiveMaxRetries {
		return RetryDecision{Attempts: newAttempts, State: job.Dead, RunAfter: now}
	}

	delay := Delay(cfg.BackoffBase(), cfg.BackoffFactorMs(), newAttempts)
	return RetryDecision{Attempts: newAttempts, State: job.Pending, RunAfter: now.Add(delay)}
}
