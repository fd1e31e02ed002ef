// Package agent implements the per-agent runtime that gates, simulates,
// executes and records tool calls, along with the pool that owns one
// runtime per agent ID and the batch executor built on top of it.
package agent

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a Runtime.
type Status string

// Status constants for the runtime state machine.
const (
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusExecuting    Status = "executing"
	StatusError        Status = "error"
	StatusShuttingDown Status = "shutting_down"
	StatusTerminated   Status = "terminated"
)

// Sentinel errors for runtime and pool construction.
var (
	ErrNoRegistry   = errors.New("agent: registry is required")
	ErrNoStore      = errors.New("agent: memory store is required")
	ErrEmptyAgentID = errors.New("agent: agent id must not be empty")
	ErrPoolFull     = errors.New("agent: pool is at capacity")
	ErrPoolClosed   = errors.New("agent: pool is closed")
)

// Stats are the cumulative counters of a Runtime.
type Stats struct {
	ToolsExecuted      int64         `json:"tools_executed"`
	Errors             int64         `json:"errors"`
	TotalExecutionTime time.Duration `json:"total_execution_time_ns"`
	LastActivity       time.Time     `json:"last_activity"`
}

// statsMap renders stats for a shutdown record.
func (s Stats) statsMap() map[string]any {
	return map[string]any{
		"tools_executed":          s.ToolsExecuted,
		"errors":                  s.Errors,
		"total_execution_time_ms": s.TotalExecutionTime.Milliseconds(),
		"last_activity":           s.LastActivity,
	}
}
