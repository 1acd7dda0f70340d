package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var fencePattern = regexp.MustCompile("```(?:json)?\\s*")

// stripFences removes markdown code fences the model sometimes wraps its
// JSON answer in.
func stripFences(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// compileSectionSchema builds a schema for an object whose listed keys are
// all required non-empty strings.
func compileSectionSchema(kind Kind, keys []string) *jsonschema.Schema {
	properties := make(map[string]any, len(keys))
	for _, key := range keys {
		properties[key] = map[string]any{"type": "string", "minLength": 1}
	}

	doc, err := json.Marshal(map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"required":   keys,
		"properties": properties,
	})
	if err != nil {
		panic(fmt.Sprintf("marshal %s schema: %v", kind, err))
	}

	return jsonschema.MustCompileString(string(kind)+".schema.json", string(doc))
}

// parseSections repairs and validates a model answer. Every error wraps
// ErrMalformedResponse.
func parseSections(text string, schema *jsonschema.Schema, keys []string) (map[string]string, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	obj := v.(map[string]any)
	sections := make(map[string]string, len(keys))
	for _, key := range keys {
		sections[key] = obj[key].(string)
	}
	return sections, nil
}
