// Package tools exposes retrieval operations as named, schema-described
// callables the model can invoke mid-answer. Every tool records the
// provenance of its most recent call so the orchestrator can surface a
// sources list next to the final answer.
package tools

import (
	"context"
	"fmt"

	"github.com/fabfab/course-rag/llm"
)

// Source is one provenance record shown to the end user.
type Source struct {
	Course  string `json:"course"`
	Lesson  *int   `json:"lesson,omitempty"`
	Content string `json:"content,omitempty"`
}

// Tool is a single capability. Execute returns text for the model;
// LastSources returns the provenance of the most recent Execute call,
// overwritten on every call and cleared by ResetSources.
type Tool interface {
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, args map[string]any) (string, error)
	LastSources() []Source
	ResetSources()
}

// stringArg pulls a string argument out of decoded JSON args.
func stringArg(args map[string]any, key string) (string, bool) {
	value, ok := args[key]
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}

// intArg pulls an integer argument. JSON decoding hands numbers over as
// float64, so both forms are accepted.
func intArg(args map[string]any, key string) (int, bool, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return 0, false, nil
	}
	switch number := value.(type) {
	case int:
		return number, true, nil
	case float64:
		return int(number), true, nil
	default:
		return 0, false, fmt.Errorf("argument %s must be a number", key)
	}
}
