package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"retrieval-agent/internal/domain/entity"

	"github.com/kaptinlin/jsonrepair"
)

// ValidateArguments checks raw tool arguments against a JSON-schema style
// parameter map and returns the arguments normalised to compact JSON.
// Malformed JSON is repaired first; streamed tool calls are often cut short.
func ValidateArguments(schema map[string]any, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return "", fmt.Errorf("%w: not valid JSON: %v", entity.ErrInvalidArguments, err)
		}
		if err := json.Unmarshal([]byte(repaired), &args); err != nil {
			return "", fmt.Errorf("%w: arguments must be a JSON object", entity.ErrInvalidArguments)
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	for _, name := range requiredFields(schema) {
		if v, ok := args[name]; !ok || v == nil {
			return "", fmt.Errorf("%w: missing required field %q", entity.ErrInvalidArguments, name)
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for name, value := range args {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		if err := checkType(name, prop, value); err != nil {
			return "", err
		}
	}

	normalized, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrInvalidArguments, err)
	}
	return string(normalized), nil
}

func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func checkType(name string, prop map[string]any, value any) error {
	want, _ := prop["type"].(string)
	ok := true
	switch want {
	case "string":
		_, ok = value.(string)
	case "number":
		_, ok = value.(float64)
	case "integer":
		f, isNum := value.(float64)
		ok = isNum && f == float64(int64(f))
	case "boolean":
		_, ok = value.(bool)
	case "array":
		_, ok = value.([]any)
	case "object":
		_, ok = value.(map[string]any)
	}
	if !ok {
		return fmt.Errorf("%w: field %q must be of type %s", entity.ErrInvalidArguments, name, want)
	}

	if enum := enumValues(prop["enum"]); len(enum) > 0 {
		for _, e := range enum {
			if e == value {
				return nil
			}
		}
		return fmt.Errorf("%w: field %q must be one of %v", entity.ErrInvalidArguments, name, enum)
	}
	return nil
}

func enumValues(v any) []any {
	switch e := v.(type) {
	case []any:
		return e
	case []string:
		out := make([]any, len(e))
		for i, s := range e {
			out[i] = s
		}
		return out
	}
	return nil
}
