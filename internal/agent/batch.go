package agent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/chaingate/internal/tool"
)

// BatchMode selects how a batch runs its operations.
type BatchMode string

// Batch modes.
const (
	BatchSequential BatchMode = "sequential"
	BatchParallel   BatchMode = "parallel"
)

// Valid reports whether m is a known mode. The empty mode means sequential.
func (m BatchMode) Valid() bool {
	switch m {
	case "", BatchSequential, BatchParallel:
		return true
	default:
		return false
	}
}

// Operation is one tool call inside a batch.
type Operation struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// Batch is a multi-operation request for one agent.
type Batch struct {
	Mode         BatchMode   `json:"mode"`
	AbortOnError bool        `json:"abort_on_error"`
	Operations   []Operation `json:"operations"`
}

// OperationResult is the outcome of one operation. Exactly one of Result
// and Error is set.
type OperationResult struct {
	Tool   string      `json:"tool"`
	Result any         `json:"result,omitempty"`
	Error  *tool.Error `json:"error,omitempty"`
}

// Failed reports whether the operation did not succeed.
func (o OperationResult) Failed() bool { return o.Error != nil }

// ExecuteBatch runs every operation of b under a single acquisition of the
// runtime. Results are returned in input order. Sequential batches with
// AbortOnError stop at the first failure and report the rest as SKIPPED.
// Parallel batches attempt every operation. The returned error is non-nil
// only when the batch could not start at all.
func (r *Runtime) ExecuteBatch(ctx context.Context, b Batch) ([]OperationResult, error) {
	if !b.Mode.Valid() {
		return nil, tool.Errorf(tool.CodeInvalidRequest, "unknown batch mode %q", b.Mode)
	}
	if err := r.acquire(); err != nil {
		return nil, err
	}

	var results []OperationResult
	if b.Mode == BatchParallel {
		results = r.runParallel(ctx, b.Operations)
	} else {
		results = r.runSequential(ctx, b.Operations, b.AbortOnError)
	}

	failed := false
	for _, res := range results {
		if res.Failed() {
			failed = true
			break
		}
	}
	r.release(failed)
	return results, nil
}

func (r *Runtime) runSequential(ctx context.Context, ops []Operation, abortOnError bool) []OperationResult {
	results := make([]OperationResult, len(ops))
	aborted := false
	for i, op := range ops {
		if aborted {
			results[i] = skipped(op)
			continue
		}
		results[i] = r.runOperation(ctx, op)
		if results[i].Failed() && abortOnError {
			aborted = true
		}
	}
	return results
}

func (r *Runtime) runParallel(ctx context.Context, ops []Operation) []OperationResult {
	results := make([]OperationResult, len(ops))
	var g errgroup.Group
	for i, op := range ops {
		g.Go(func() error {
			results[i] = r.runOperation(ctx, op)
			return nil
		})
	}
	// Operations report failures in their result slot, never through the group.
	_ = g.Wait()
	return results
}

func (r *Runtime) runOperation(ctx context.Context, op Operation) OperationResult {
	d, err := r.registry.Lookup(op.Tool)
	if err != nil {
		return OperationResult{Tool: op.Tool, Error: tool.AsError(err)}
	}
	result, err := r.run(ctx, d, op.Params)
	if err != nil {
		return OperationResult{Tool: op.Tool, Error: tool.AsError(err)}
	}
	return OperationResult{Tool: op.Tool, Result: result}
}

func skipped(op Operation) OperationResult {
	return OperationResult{
		Tool:  op.Tool,
		Error: tool.Errorf(tool.CodeSkipped, "not run: an earlier operation failed"),
	}
}
