package llm

import (
	"encoding/json"
	"fmt"
)

// JSONSchema is the subset of JSON Schema used for tool parameters and
// structured output.
type JSONSchema struct {
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Type                 string                 `json:"type"`
	Description          string                 `json:"description,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	AdditionalProperties bool                   `json:"additionalProperties"`
}

// MarshalJSON implements json.Marshaler. The alias type prevents recursion.
func (s *JSONSchema) MarshalJSON() ([]byte, error) {
	type alias JSONSchema
	return json.Marshal((*alias)(s))
}

// Object returns an object schema over props with the given required keys.
func Object(props map[string]*JSONSchema, required ...string) *JSONSchema {
	return &JSONSchema{Type: "object", Properties: props, Required: required}
}

// String returns a string schema.
func String(description string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description}
}

// CheckRequired reports whether raw is a JSON object carrying every required
// key of s with a non-null value. Types are not checked.
func (s *JSONSchema) CheckRequired(raw []byte) error {
	if s == nil || len(s.Required) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("expected a JSON object: %w", err)
	}
	for _, key := range s.Required {
		v, ok := obj[key]
		if !ok || string(v) == "null" {
			return fmt.Errorf("missing required field %q", key)
		}
	}
	return nil
}
