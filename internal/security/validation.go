package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Payload defaults.
const (
	DefaultMaxBodyBytes = 1 << 20 // 1 MiB
	DefaultMaxJSONDepth = 32
)

// Payload errors.
var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
	ErrJSONTooDeep     = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON     = errors.New("invalid JSON")
)

// PayloadLimits bounds a request body before it is decoded.
type PayloadLimits struct {
	MaxBytes int64 `yaml:"max_body_bytes"`
	MaxDepth int   `yaml:"max_json_depth"`
}

func (l PayloadLimits) withDefaults() PayloadLimits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBodyBytes
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxJSONDepth
	}
	return l
}

// ReadPayload reads a JSON body of at most MaxBytes and rejects documents
// nested deeper than MaxDepth.
func ReadPayload(r io.Reader, limits PayloadLimits) ([]byte, error) {
	limits = limits.withDefaults()

	data, err := io.ReadAll(io.LimitReader(r, limits.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if int64(len(data)) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, limits.MaxBytes)
	}
	if err := ValidateJSONDepth(data, limits.MaxDepth); err != nil {
		return nil, err
	}
	return data, nil
}

// ValidateJSONDepth checks that data does not nest deeper than limit
// levels. A limit <= 0 uses DefaultMaxJSONDepth.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
