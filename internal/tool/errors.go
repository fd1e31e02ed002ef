package tool

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when a tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrEmptyToolName is returned when a tool name is empty.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrNilAction is returned when registering a descriptor without an action.
	ErrNilAction = errors.New("tool action must not be nil")

	// ErrInvalidSchema is returned when a descriptor's schema cannot be compiled.
	ErrInvalidSchema = errors.New("invalid tool schema")

	// ErrUnknownPermission is returned when a descriptor declares a tag
	// outside public, authenticated, admin.
	ErrUnknownPermission = errors.New("unknown permission tag")

	// ErrRegistryClosed is returned when registering after the registry was sealed.
	ErrRegistryClosed = errors.New("tool registry is closed")
)

// Code classifies a failure surfaced to callers.
type Code string

// Dispatch and runtime codes.
const (
	CodeToolNotFound     Code = "TOOL_NOT_FOUND"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeAgentNotReady    Code = "AGENT_NOT_READY"
	CodeSimulationFailed Code = "SIMULATION_FAILED"
	CodeTimeout          Code = "TIMEOUT"
	CodeExecution        Code = "EXECUTION_ERROR"
)

// Codes translated from the blockchain collaborator.
const (
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeBlockchain        Code = "BLOCKCHAIN_ERROR"
	CodeFeeCalculation    Code = "FEE_CALCULATION_FAILED"
)

// Transport-level codes used by the gateway.
const (
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeAgentNotFound  Code = "AGENT_NOT_FOUND"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeSkipped        Code = "SKIPPED"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Error is the structured failure returned across the runtime boundary.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`

	// Err is the underlying cause. It is never serialized.
	Err error `json:"-"`
}

// Error implements error.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code, so errors.Is(err, Coded(CodeTimeout))
// works through wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// Coded returns a bare *Error for use as an errors.Is target.
func Coded(code Code) error {
	return &Error{Code: code}
}

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying err as its cause.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// CodeOf returns the code of err after normalization.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}

// AsError normalizes any error into an *Error. Typed errors pass through,
// known sentinels map to their codes, and everything else becomes
// CodeExecution.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	switch {
	case errors.Is(err, ErrToolNotFound):
		return Wrap(CodeToolNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeTimeout, err)
	default:
		return Wrap(CodeExecution, err)
	}
}
