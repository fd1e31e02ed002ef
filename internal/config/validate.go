package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/chaingate/internal/core"
)

var validLogLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and rejects
// configurations that select more than one memory backend.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, fmt.Errorf("config: invalid log_level %q", cfg.LogLevel))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var memoryBackends []string
	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
		if core.ModuleID(id).Namespace() == "memory" {
			memoryBackends = append(memoryBackends, id)
		}
	}
	if len(memoryBackends) > 1 {
		errs = append(errs, fmt.Errorf("config: only one memory backend may be configured, got %s", strings.Join(sorted(memoryBackends), ", ")))
	}

	errs = append(errs, validateSecurity(cfg.Security)...)

	return errors.Join(errs...)
}

func validateSecurity(sec *SecurityConfig) []error {
	if sec == nil {
		return nil
	}
	var errs []error
	if sec.RateLimits.ToolCallsPerMin < 0 {
		errs = append(errs, fmt.Errorf("config: security.rate_limits.tool_calls_per_min must be non-negative, got %d", sec.RateLimits.ToolCallsPerMin))
	}
	if sec.RateLimits.AgentCallsPerMin < 0 {
		errs = append(errs, fmt.Errorf("config: security.rate_limits.agent_calls_per_min must be non-negative, got %d", sec.RateLimits.AgentCallsPerMin))
	}
	return errs
}
