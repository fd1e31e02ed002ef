// Package memory provides the per-agent append-only execution log and its
// in-memory and file-backed implementations.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("memory: store closed")

	// ErrEmptyAgentID is returned when saving without an agent ID.
	ErrEmptyAgentID = errors.New("memory: agent id must not be empty")
)

// Kind distinguishes execution records from lifecycle records.
type Kind string

// Record kinds.
const (
	KindExecution Kind = "execution"
	KindShutdown  Kind = "shutdown"
)

// ErrorInfo is the failure half of a record.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Record is one entry of an agent's execution log. Exactly one of Result
// and Error is set for execution records. Shutdown records carry a stats
// snapshot in Result.
type Record struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Tool       string         `json:"tool,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Result     any            `json:"result,omitempty"`
	Error      *ErrorInfo     `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMS int64          `json:"duration_ms"`
}

// Failed reports whether the record describes a failed execution.
func (r Record) Failed() bool { return r.Error != nil }

// Store is an append-only, per-agent record log.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save appends rec to the agent's log. It returns only once the record
	// is durable for the implementation. A zero Timestamp is set to now and
	// an empty ID is replaced by a UUID.
	Save(ctx context.Context, agentID string, rec Record) error

	// Get returns the newest limit records in insertion order. limit <= 0
	// returns every record. An unknown agent yields an empty slice.
	Get(ctx context.Context, agentID string, limit int) ([]Record, error)

	// Agents returns every agent ID with at least one record, sorted.
	Agents(ctx context.Context) ([]string, error)
}

// Compactor is implemented by stores that can trim old records.
type Compactor interface {
	// Compact keeps at most maxPerAgent newest records per agent and
	// returns how many records were dropped.
	Compact(ctx context.Context, maxPerAgent int) (int, error)
}

// Prepare fills in server-side defaults for a record about to be saved.
// Store implementations call it; callers need not.
func Prepare(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Kind == "" {
		rec.Kind = KindExecution
	}
	return rec
}

// stampAfter prepares rec for appending to log. Callers hold the log's
// write lock, so the stamp happens in insertion order. A stamp earlier than
// the last record's (clock step back) is raised to it.
func stampAfter(log []Record, rec Record) Record {
	stamped := rec.Timestamp.IsZero()
	rec = Prepare(rec)
	if n := len(log); stamped && n > 0 && rec.Timestamp.Before(log[n-1].Timestamp) {
		rec.Timestamp = log[n-1].Timestamp
	}
	return rec
}

// tail returns a copy of the newest limit records of recs.
func tail(recs []Record, limit int) []Record {
	start := 0
	if limit > 0 && limit < len(recs) {
		start = len(recs) - limit
	}
	out := make([]Record, len(recs)-start)
	copy(out, recs[start:])
	return out
}

// trim drops the oldest records of every agent beyond maxPerAgent.
func trim(logs map[string][]Record, maxPerAgent int) int {
	if maxPerAgent <= 0 {
		return 0
	}
	dropped := 0
	for id, recs := range logs {
		if n := len(recs) - maxPerAgent; n > 0 {
			logs[id] = tail(recs, maxPerAgent)
			dropped += n
		}
	}
	return dropped
}
