package agent

import (
	"testing"
	"time"
)

func TestWithDefaults_ZeroValue(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.MaxMemoryItems != DefaultMaxMemoryItems {
		t.Errorf("MaxMemoryItems = %d, want %d", cfg.MaxMemoryItems, DefaultMaxMemoryItems)
	}
	if cfg.SimulateFirst {
		t.Error("withDefaults must not flip SimulateFirst")
	}
}

func TestWithDefaults_ExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Timeout:                  2 * time.Second,
		MaxMemoryItems:           5,
		RecordValidationFailures: true,
	}.withDefaults()

	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Timeout)
	}
	if cfg.MaxMemoryItems != 5 {
		t.Errorf("MaxMemoryItems = %d, want 5", cfg.MaxMemoryItems)
	}
	if !cfg.RecordValidationFailures {
		t.Error("RecordValidationFailures lost")
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if !cfg.SimulateFirst {
		t.Error("SimulateFirst should default to true")
	}
	if cfg.RecordValidationFailures {
		t.Error("RecordValidationFailures should default to false")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
}
