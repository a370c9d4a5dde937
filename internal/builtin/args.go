package builtin

import (
	"bytes"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// decodeArgs strictly decodes raw argument blocks into typed assertion
// structs: unknown fields are rejected and declared constraints
// (required, gte, len, ...) are enforced.
func decodeArgs[T any](args []map[string]any) ([]T, error) {
	out := make([]T, 0, len(args))
	for i, block := range args {
		data, err := yaml.Marshal(block)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		if err := validate.Struct(&v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// mapAt returns doc[key] as a mapping, or an empty mapping when absent
// or differently typed.
func mapAt(doc any, key string) map[string]any {
	m, ok := doc.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	inner, ok := m[key].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return inner
}

// sliceAt returns doc[key] as a sequence, or nil when absent.
func sliceAt(doc any, key string) []any {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	s, _ := m[key].([]any)
	return s
}

// intAt returns m[key] as an int when it holds one.
func intAt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
