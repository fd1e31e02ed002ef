// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for chaingate.
package config

import (
	"gopkg.in/yaml.v3"

	"github.com/flemzord/chaingate/internal/security"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the default persistent data directory.
	DataDir string `yaml:"data_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "memory.file").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Security holds optional admission control and audit settings.
	Security *SecurityConfig `yaml:"security,omitempty"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RateLimits is the process-wide tool call limiter. A gateway with its
	// own rate_limit block uses that instead.
	RateLimits security.RateLimitConfig `yaml:"rate_limits"`
	Audit      AuditConfig              `yaml:"audit"`
}

// AuditConfig controls the JSONL audit trail.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path defaults to {data_dir}/audit.jsonl.
	Path string `yaml:"path"`
}
