package config_test

import (
	"testing"
	"time"

	"github.com/queuectl/queuectl/config"
)

func TestValidateEnforcesPerKeyMinimums(t *testing.T) {
	cases := []struct {
		key   config.Key
		value string
		ok    bool
	}{
		{config.MaxRetries, "0", true},
		{config.MaxRetries, "-1", false},
		{config.BackoffBase, "1", true},
		{config.BackoffBase, "0", false},
		{config.BackoffFactorMs, "0", true},
		{config.TickIntervalMs, "50", true},
		{config.TickIntervalMs, "49", false},
		{config.SaveIntervalMs, "1000", true},
		{config.SaveIntervalMs, "999", false},
		{config.MaxRetries, "three", false},
		{config.Key("no_such_key"), "1", false},
	}
	for _, c := range cases {
		_, err := config.Validate(c.key, c.value)
		if c.ok && err != nil {
			t.Errorf("Validate(%s, %q): unexpected error %v", c.key, c.value, err)
		}
		if !c.ok && err == nil {
			t.Errorf("Validate(%s, %q): expected error", c.key, c.value)
		}
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	v := config.Load(nil)
	if v.MaxRetries() != 3 {
		t.Errorf("default max_retries = %d, want 3", v.MaxRetries())
	}
	if v.TickInterval() != 200*time.Millisecond {
		t.Errorf("default tick interval = %v, want 200ms", v.TickInterval())
	}
}

func TestLoadUsesStoredValuesAndIgnoresCorruptOnes(t *testing.T) {
	v := config.Load(map[string]string{
		"max_retries":      "7",
		"tick_interval_ms": "not-a-number",
	})
	if v.MaxRetries() != 7 {
		t.Errorf("max_retries = %d, want 7", v.MaxRetries())
	}
	if v.TickInterval() != 200*time.Millisecond {
		t.Errorf("corrupt tick_interval_ms should fall back to default, got %v", v.TickInterval())
	}
}

func TestKnownAndKeys(t *testing.T) {
	if !config.Known("max_retries") {
		t.Error("max_retries should be known")
	}
	if config.Known("nope") {
		t.Error("nope should not be known")
	}
	if len(config.Keys()) != 5 {
		t.Errorf("expected 5 recognized keys, got %d", len(config.Keys()))
	}
}
