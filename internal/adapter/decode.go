package adapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/schemas"
)

// MalformedError reports a response that failed decoding after re-extraction.
type MalformedError struct {
	Schema string
	Raw    string
	Cause  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s response: %v (response: %s)", e.Schema, e.Cause, logging.TruncateForLog(e.Raw, 200))
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}

// DecodeJSON validates raw against the named schema and decodes it into T. When the first
// attempt fails, the first JSON object embedded in raw is extracted and tried once more.
func DecodeJSON[T any](schema, raw string) (T, error) {
	var zero T

	first := llm.CleanJSONBlock(raw)
	v, err := decode[T](schema, first)
	if err == nil {
		return v, nil
	}

	if second := llm.ExtractJSONObject(raw); second != "" && second != first {
		if v, retryErr := decode[T](schema, second); retryErr == nil {
			return v, nil
		}
	}
	return zero, &MalformedError{Schema: schema, Raw: raw, Cause: err}
}

func decode[T any](schema, content string) (T, error) {
	var v T
	if strings.TrimSpace(content) == "" {
		return v, fmt.Errorf("empty response")
	}
	if !json.Valid([]byte(content)) {
		return v, fmt.Errorf("response is not valid JSON")
	}
	if schema != "" {
		if err := schemas.Validate(schema, content); err != nil {
			return v, err
		}
	}
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return v, fmt.Errorf("failed to decode response: %w", err)
	}
	return v, nil
}
