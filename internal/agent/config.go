package agent

import "time"

// Default values for Config.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxMemoryItems = 100
)

// Config controls a Runtime.
type Config struct {
	// Timeout bounds a single action. The action's context is cancelled
	// when it fires.
	Timeout time.Duration

	// SimulateFirst runs the tool's simulator, when it has one, before the
	// action. DefaultConfig enables it.
	SimulateFirst bool

	// MaxMemoryItems is the LoadMemory limit used when none is given.
	MaxMemoryItems int

	// RecordValidationFailures also persists calls rejected by schema
	// validation. Off by default.
	RecordValidationFailures bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		SimulateFirst:  true,
		MaxMemoryItems: DefaultMaxMemoryItems,
	}
}

// withDefaults returns a copy with zero durations and limits replaced by
// defaults. Booleans are taken as given.
func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxMemoryItems <= 0 {
		c.MaxMemoryItems = DefaultMaxMemoryItems
	}
	return c
}
