package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flemzord/chaingate/internal/agent"
	"github.com/flemzord/chaingate/internal/security"
	"github.com/flemzord/chaingate/internal/tool"
)

// errorBody is the envelope of every failed response.
type errorBody struct {
	Error *tool.Error `json:"error"`
}

// statusFor maps an error code to its HTTP status. Lookup and request
// problems are 4xx. Anything the runtime reports after accepting the call
// (permission, readiness, simulation, execution) is 5xx.
func statusFor(code tool.Code) int {
	switch code {
	case tool.CodeToolNotFound, tool.CodeAgentNotFound:
		return http.StatusNotFound
	case tool.CodeValidation, tool.CodeInvalidRequest:
		return http.StatusBadRequest
	case tool.CodeUnauthorized:
		return http.StatusUnauthorized
	case tool.CodeAgentNotReady:
		return http.StatusServiceUnavailable
	case tool.CodeRateLimited:
		return http.StatusTooManyRequests
	case tool.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as an error envelope. Untyped errors become
// INTERNAL_ERROR with a generic message.
func writeError(w http.ResponseWriter, err error) {
	var te *tool.Error
	if !errors.As(err, &te) {
		te = tool.Errorf(tool.CodeInternal, "internal error")
	}
	if te.Code == tool.CodeUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="chaingate"`)
	}
	writeJSON(w, statusFor(te.Code), errorBody{Error: te})
}

// requestError translates payload and pool failures into typed errors.
func requestError(err error) *tool.Error {
	switch {
	case errors.Is(err, security.ErrPayloadTooLarge),
		errors.Is(err, security.ErrJSONTooDeep),
		errors.Is(err, security.ErrInvalidJSON):
		return &tool.Error{Code: tool.CodeInvalidRequest, Message: err.Error(), Err: err}
	case errors.Is(err, agent.ErrPoolFull):
		return &tool.Error{Code: tool.CodeRateLimited, Message: "agent capacity reached", Err: err}
	case errors.Is(err, agent.ErrPoolClosed):
		return &tool.Error{Code: tool.CodeAgentNotReady, Message: "gateway is shutting down", Err: err}
	default:
		return tool.AsError(err)
	}
}
