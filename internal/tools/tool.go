// Package tools provides the tool framework and implementations for the agent.
package tools

import (
	"context"
	"sort"

	"github.com/agentgate/agentgate/internal/provider"
)

// OutcomeKind discriminates the Outcome variants.
type OutcomeKind int

const (
	// OutcomeSuccess carries the tool's text output.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeConfirmationRequired pauses the turn until a human decides.
	// It is control flow, not an error.
	OutcomeConfirmationRequired
	// OutcomeFailure carries a failure description. The model sees it as
	// a tool result; it does not abort the turn.
	OutcomeFailure
)

// Outcome is the tagged result of a tool invocation.
type Outcome struct {
	Kind    OutcomeKind
	Text    string // Success output or Failure reason
	Command string // the command awaiting confirmation
}

// Success returns a successful outcome with the tool's output.
func Success(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

// ConfirmationRequired returns an outcome that pauses the turn for a human
// decision on command.
func ConfirmationRequired(command string) Outcome {
	return Outcome{Kind: OutcomeConfirmationRequired, Command: command}
}

// Failure returns a failed outcome with a description for the model.
func Failure(reason string) Outcome {
	return Outcome{Kind: OutcomeFailure, Text: reason}
}

// Tool is the interface that all agent tools implement. Tools are pure with
// respect to session state: they know nothing about sessions, histories, or
// pending actions.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Invoke runs the tool with the given arguments.
	Invoke(ctx context.Context, args map[string]any) Outcome
}

// Registry holds the tool set for a single turn.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Definitions returns tool definitions in the provider's function format.
func (r *Registry) Definitions() []provider.ToolDefinition {
	tools := r.List()
	result := make([]provider.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		result = append(result, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return result
}

// Factory produces the tool set for a turn, parameterized by the safe-mode
// flag. Only the terminal tool varies with the flag.
type Factory struct {
	terminalTimeout int // seconds
	search          Tool
	browser         Tool
}

// FactoryOptions configures tool construction.
type FactoryOptions struct {
	TerminalTimeoutSeconds int
	SearchMaxResults       int
	Browser                PageFetcher // nil disables the browser tool
}

// NewFactory creates a tool factory.
func NewFactory(opts FactoryOptions) *Factory {
	f := &Factory{
		terminalTimeout: opts.TerminalTimeoutSeconds,
		search:          NewSearchTool(opts.SearchMaxResults),
	}
	if opts.Browser != nil {
		f.browser = NewBrowserTool(opts.Browser)
	}
	return f
}

// Tools returns the registry for a turn with the given safe-mode setting.
func (f *Factory) Tools(safeMode bool) *Registry {
	r := NewRegistry()
	r.Register(NewTerminalTool(f.terminalTimeout, safeMode))
	r.Register(f.search)
	if f.browser != nil {
		r.Register(f.browser)
	}
	return r
}

// GetString extracts a string argument with a default value.
func GetString(args map[string]any, key string, defaultVal string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int argument with a default value.
func GetInt(args map[string]any, key string, defaultVal int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}
