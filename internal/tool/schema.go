package tool

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

var defaultSchema = json.RawMessage(`{"type":"object"}`)

// validator is a compiled parameter schema. Top-level properties are also
// resolved individually so failures can be reported per field.
type validator struct {
	schema     *jsonschema.Schema
	resolved   *jsonschema.Resolved
	properties map[string]*jsonschema.Resolved
}

func compileSchema(raw json.RawMessage) (*validator, error) {
	if len(raw) == 0 {
		raw = defaultSchema
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	props := make(map[string]*jsonschema.Resolved, len(schema.Properties))
	for name, prop := range schema.Properties {
		if prop == nil {
			continue
		}
		// Sub-schemas that reference the root cannot resolve on their own;
		// those fields fall back to the whole-document error message.
		if r, err := prop.Resolve(nil); err == nil {
			props[name] = r
		}
	}

	return &validator{schema: &schema, resolved: resolved, properties: props}, nil
}

// validate normalizes params through JSON, applies defaults, and validates.
func (v *validator) validate(params map[string]any) (Params, error) {
	normalized, err := normalize(params)
	if err != nil {
		return nil, &Error{Code: CodeValidation, Message: err.Error(), Err: err}
	}

	instance := map[string]any(normalized)
	if err := v.resolved.ApplyDefaults(&instance); err != nil {
		return nil, &Error{Code: CodeValidation, Message: err.Error(), Err: err}
	}
	normalized = Params(instance)

	if err := v.resolved.Validate(instance); err != nil {
		return nil, &Error{
			Code:    CodeValidation,
			Message: "invalid params: " + err.Error(),
			Fields:  v.fieldErrors(normalized),
			Err:     err,
		}
	}
	return normalized, nil
}

// fieldErrors reports missing required fields and top-level properties that
// fail their own sub-schema.
func (v *validator) fieldErrors(params Params) map[string]string {
	fields := make(map[string]string)
	for _, name := range v.schema.Required {
		if _, ok := params[name]; !ok {
			fields[name] = "required"
		}
	}
	for name, value := range params {
		sub, ok := v.properties[name]
		if !ok {
			continue
		}
		if err := sub.Validate(value); err != nil {
			fields[name] = err.Error()
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// normalize deep-copies params through their JSON form so numbers become
// float64 and caller-owned maps are never mutated.
func normalize(params map[string]any) (Params, error) {
	if len(params) == 0 {
		return Params{}, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("params are not JSON-encodable: %w", err)
	}
	var out Params
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("params are not a JSON object: %w", err)
	}
	if out == nil {
		out = Params{}
	}
	return out, nil
}
