package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabfab/course-rag/llm"
)

// ErrUnknownTool reports a dispatch to a name no tool registered. The
// orchestrator feeds it back to the model as a tool result so the model
// can recover instead of failing the query.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidArguments reports tool arguments that fail validation
// before any backend call. Also fed back to the model, which can retry
// with corrected arguments.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// Registry dispatches tool calls by name and aggregates source
// provenance across all registered tools. A registry instance belongs
// to exactly one in-flight query; it is never shared between queries.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

func (r *Registry) Register(tool Tool) error {
	name := tool.Definition().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Definitions returns every tool schema in registration order, ready to
// hand to the model.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool.Execute(ctx, args)
}

// LastSources gathers the most recent sources recorded by every
// registered tool, in registration order.
func (r *Registry) LastSources() []Source {
	var sources []Source
	for _, name := range r.order {
		sources = append(sources, r.tools[name].LastSources()...)
	}
	return sources
}

// ResetSources clears every tool's recorded sources. Called once per
// query turn after the answer is finalized so sources never leak into
// the next turn.
func (r *Registry) ResetSources() {
	for _, tool := range r.tools {
		tool.ResetSources()
	}
}
