// Package engine implements the turn-execution state machine: it drives one
// conversational turn from user input (or a resumed confirmation) through
// model calls and tool execution to either a final assistant message or a
// new pending confirmation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentgate/agentgate/internal/eventlog"
	"github.com/agentgate/agentgate/internal/provider"
	"github.com/agentgate/agentgate/internal/session"
	"github.com/agentgate/agentgate/internal/tools"
)

const defaultMaxIterations = 10

const defaultSystemPrompt = "You are a helpful assistant. Use the provided tools to answer questions and fulfill requests. " +
	"Check your conversation history before deciding on an action. " +
	"When you need to run a system command, use the 'terminal' tool with the command; " +
	"the system handles any required confirmation."

// declinedMessage is the synthetic tool result appended when a human rejects
// a pending command.
const declinedMessage = "Command was not executed (declined by user)."

// Options configures the turn engine.
type Options struct {
	Store    *session.Store
	Provider provider.LLMProvider
	Tools    *tools.Factory
	EventLog *eventlog.Service // may be nil

	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
	SystemPrompt  string

	// CommentOnDecline re-invokes the model after a rejected command so it
	// can comment on the decline. Off by default: the rejection is terminal
	// for that action.
	CommentOnDecline bool
}

// Engine drives conversational turns. It owns no session state of its own;
// everything lives in the store.
type Engine struct {
	store            *session.Store
	provider         provider.LLMProvider
	tools            *tools.Factory
	eventLog         *eventlog.Service
	model            string
	maxTokens        int
	temperature      float64
	maxIterations    int
	systemPrompt     string
	commentOnDecline bool
}

// New creates a turn engine.
func New(opts Options) *Engine {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	sysPrompt := opts.SystemPrompt
	if sysPrompt == "" {
		sysPrompt = defaultSystemPrompt
	}
	return &Engine{
		store:            opts.Store,
		provider:         opts.Provider,
		tools:            opts.Tools,
		eventLog:         opts.EventLog,
		model:            opts.Model,
		maxTokens:        maxTokens,
		temperature:      opts.Temperature,
		maxIterations:    maxIter,
		systemPrompt:     sysPrompt,
		commentOnDecline: opts.CommentOnDecline,
	}
}

// TurnInput selects how a turn begins. Exactly one of the three ways must
// be used: a fresh user message, a confirmed command resuming a pending
// action, or a rejection of the pending action.
type TurnInput struct {
	UserInput        string
	ConfirmedCommand string
	Reject           bool
}

func (in TurnInput) valid() bool {
	n := 0
	if in.UserInput != "" {
		n++
	}
	if in.ConfirmedCommand != "" {
		n++
	}
	if in.Reject {
		n++
	}
	return n == 1
}

// TurnResult is what a completed turn hands back to the caller.
type TurnResult struct {
	// NewMessages are the messages appended to the session during this turn,
	// in order.
	NewMessages []session.Message
	// Pending is non-nil when the turn ended awaiting confirmation.
	Pending *session.PendingAction
}

// RunTurn executes one turn for the session. Turns on the same session are
// serialized; the session lock is held for the turn's duration, while other
// sessions proceed in parallel.
func (e *Engine) RunTurn(ctx context.Context, sessionID string, in TurnInput, safeMode bool) (*TurnResult, error) {
	if !in.valid() {
		return nil, &ProtocolError{Reason: "exactly one of user input, confirmed command, or rejection must be supplied"}
	}

	release, err := e.store.AcquireTurn(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	t := &turn{engine: e, sessionID: sessionID}

	switch {
	case in.ConfirmedCommand != "":
		if err := t.resumeConfirmed(ctx, in.ConfirmedCommand); err != nil {
			return nil, err
		}
	case in.Reject:
		done, err := t.resumeRejected()
		if err != nil {
			return nil, err
		}
		if done {
			return t.result(), nil
		}
	default:
		if err := t.append(session.Message{Role: session.RoleUser, Content: in.UserInput}); err != nil {
			return nil, err
		}
		e.log(sessionID, "turn_started", map[string]any{"safe_mode": safeMode})
	}

	if err := t.modelLoop(ctx, safeMode, in.UserInput); err != nil {
		return nil, err
	}
	return t.result(), nil
}

// turn tracks the messages appended while a single turn runs.
type turn struct {
	engine    *Engine
	sessionID string
	appended  []session.Message
	pending   *session.PendingAction
}

func (t *turn) append(msg session.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := t.engine.store.AppendMessage(t.sessionID, msg); err != nil {
		return err
	}
	t.appended = append(t.appended, msg)
	return nil
}

func (t *turn) result() *TurnResult {
	return &TurnResult{NewMessages: t.appended, Pending: t.pending}
}

// resumeConfirmed executes the approved command with the real terminal tool
// and clears the pending slot before the model sees the output.
func (t *turn) resumeConfirmed(ctx context.Context, command string) error {
	e := t.engine
	pending, err := e.store.Pending(t.sessionID)
	if err != nil {
		return err
	}
	if pending == nil {
		return &ProtocolError{Reason: "confirmed command supplied but no action is pending"}
	}

	reg := e.tools.Tools(false)
	tool, ok := reg.Get(pending.Tool)
	var text string
	if !ok {
		text = fmt.Sprintf("Error: tool not found: %s", pending.Tool)
	} else {
		outcome := tool.Invoke(ctx, map[string]any{"command": command})
		text = outcomeText(outcome)
	}

	if err := e.store.ClearPending(t.sessionID); err != nil {
		return err
	}
	e.log(t.sessionID, "confirmation_resolved", map[string]any{
		"approved": true,
		"tool":     pending.Tool,
		"command":  command,
	})

	return t.append(session.Message{
		Role:       session.RoleTool,
		Content:    text,
		ToolCallID: pending.ToolCallID,
	})
}

// resumeRejected clears the pending slot and appends the decline message.
// Returns done=true when the turn ends without a model call (the default
// policy).
func (t *turn) resumeRejected() (bool, error) {
	e := t.engine
	pending, err := e.store.Pending(t.sessionID)
	if err != nil {
		return false, err
	}
	if pending == nil {
		return false, &ProtocolError{Reason: "rejection supplied but no action is pending"}
	}

	if err := e.store.ClearPending(t.sessionID); err != nil {
		return false, err
	}
	e.log(t.sessionID, "confirmation_resolved", map[string]any{
		"approved": false,
		"tool":     pending.Tool,
		"command":  pending.Command,
	})

	if err := t.append(session.Message{
		Role:       session.RoleTool,
		Content:    declinedMessage,
		ToolCallID: pending.ToolCallID,
	}); err != nil {
		return false, err
	}
	return !e.commentOnDecline, nil
}

// modelLoop runs the bounded model+tool loop until the model stops
// requesting tools, a confirmation pauses the turn, or the iteration cap
// is hit.
func (t *turn) modelLoop(ctx context.Context, safeMode bool, userInput string) error {
	e := t.engine
	reg := e.tools.Tools(safeMode)
	defs := reg.Definitions()

	for i := 0; i < e.maxIterations; i++ {
		history, err := e.store.Messages(t.sessionID)
		if err != nil {
			return err
		}

		resp, err := e.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    e.buildProviderMessages(history),
			Tools:       defs,
			Model:       e.model,
			MaxTokens:   e.maxTokens,
			Temperature: e.temperature,
		})
		if err != nil {
			// Backend failures surface as one assistant-visible message and
			// end the turn; there is no automatic retry.
			slog.Warn("Model call failed", "session_id", t.sessionID, "error", err)
			e.log(t.sessionID, "model_error", map[string]any{"error": err.Error()})
			return t.append(session.Message{
				Role:    session.RoleAssistant,
				Content: friendlyModelError(err, userInput),
			})
		}
		e.log(t.sessionID, "model_call", map[string]any{
			"iteration":    i,
			"tool_calls":   len(resp.ToolCalls),
			"total_tokens": resp.Usage.TotalTokens,
		})

		assistant := session.Message{Role: session.RoleAssistant, Content: resp.Content}
		for _, tc := range resp.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, session.ToolCall{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: tc.Arguments,
			})
		}
		if err := t.append(assistant); err != nil {
			return err
		}

		if len(resp.ToolCalls) == 0 {
			e.log(t.sessionID, "turn_complete", nil)
			return nil
		}

		paused, err := t.executeBatch(ctx, reg, resp.ToolCalls)
		if err != nil {
			return err
		}
		if paused {
			return nil
		}
	}

	e.log(t.sessionID, "max_iterations_reached", nil)
	return t.append(session.Message{
		Role:    session.RoleAssistant,
		Content: "Max iterations reached. Please try a simpler request.",
	})
}

// executeBatch runs a model response's tool calls strictly in order. A
// confirmation requirement stops the batch: calls after it stay unexecuted
// until the pending action resolves.
func (t *turn) executeBatch(ctx context.Context, reg *tools.Registry, calls []provider.ToolCall) (paused bool, err error) {
	e := t.engine
	for _, tc := range calls {
		tool, ok := reg.Get(tc.Name)
		if !ok {
			if err := t.append(session.Message{
				Role:       session.RoleTool,
				Content:    fmt.Sprintf("Error: tool not found: %s", tc.Name),
				ToolCallID: tc.ID,
			}); err != nil {
				return false, err
			}
			continue
		}

		outcome := tool.Invoke(ctx, tc.Arguments)
		slog.Debug("Tool executed", "session_id", t.sessionID, "tool", tc.Name, "outcome", outcome.Kind)

		if outcome.Kind == tools.OutcomeConfirmationRequired {
			action := session.PendingAction{
				Tool:       tc.Name,
				Command:    outcome.Command,
				ToolCallID: tc.ID,
			}
			if err := e.store.SetPending(t.sessionID, action); err != nil {
				return false, &ProtocolError{Reason: fmt.Sprintf("set pending action: %v", err)}
			}
			e.log(t.sessionID, "confirmation_required", map[string]any{
				"tool":    tc.Name,
				"command": outcome.Command,
			})
			if err := t.append(session.Message{
				Role:       session.RoleTool,
				Content:    fmt.Sprintf("Confirmation required before running: `%s`", outcome.Command),
				ToolCallID: tc.ID,
			}); err != nil {
				return false, err
			}
			t.pending = &action
			return true, nil
		}

		e.log(t.sessionID, "tool_executed", map[string]any{
			"tool":    tc.Name,
			"success": outcome.Kind == tools.OutcomeSuccess,
		})
		if err := t.append(session.Message{
			Role:       session.RoleTool,
			Content:    outcomeText(outcome),
			ToolCallID: tc.ID,
		}); err != nil {
			return false, err
		}
	}
	return false, nil
}

// buildProviderMessages converts stored history to the provider's wire type,
// prefixed with the system prompt.
func (e *Engine) buildProviderMessages(history []session.Message) []provider.Message {
	out := make([]provider.Message, 0, len(history)+1)
	out = append(out, provider.Message{Role: "system", Content: e.systemPrompt})
	for _, msg := range history {
		pm := provider.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			pm.ToolCalls = append(pm.ToolCalls, provider.ToolCall{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: tc.Arguments,
			})
		}
		out = append(out, pm)
	}
	return out
}

// log records an event best-effort: observability never fails a turn.
func (e *Engine) log(sessionID, eventType string, data map[string]any) {
	if e.eventLog == nil {
		return
	}
	if err := e.eventLog.Log(sessionID, eventType, data); err != nil {
		slog.Warn("Event log write failed", "session_id", sessionID, "event_type", eventType, "error", err)
	}
}

func outcomeText(o tools.Outcome) string {
	switch o.Kind {
	case tools.OutcomeFailure:
		return "Error: " + o.Text
	case tools.OutcomeConfirmationRequired:
		// Unreachable with an ungated registry; reported rather than lost.
		return fmt.Sprintf("Confirmation required before running: `%s`", o.Command)
	default:
		return o.Text
	}
}

// safeCommands are used to soften content-filter false positives on common
// read-only commands.
var safeCommands = []string{"whoami", "pwd", "ls", "dir", "date", "time", "echo", "cat", "type", "which", "where"}

// friendlyModelError maps a backend failure to the assistant-visible text
// appended to the conversation.
func friendlyModelError(err error, userInput string) string {
	errStr := err.Error()
	if strings.Contains(errStr, "content_filter") || strings.Contains(errStr, "ResponsibleAIPolicyViolation") {
		lower := strings.ToLower(userInput)
		for _, cmd := range safeCommands {
			if strings.Contains(lower, cmd) {
				return "The content filter blocked this request, but it appears to be a safe system command. " +
					"You can try executing it directly or contact support if this persists."
			}
		}
		return "Sorry, I cannot process this request due to content policy restrictions. Please try rephrasing your request."
	}
	return "An error occurred while processing your request. Please try again."
}
