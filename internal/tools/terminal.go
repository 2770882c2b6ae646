package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultTerminalTimeout = 30 * time.Second

// TerminalTool executes shell commands. It is the only gated tool: in safe
// mode every invocation returns ConfirmationRequired instead of executing.
type TerminalTool struct {
	timeout  time.Duration
	safeMode bool
}

// NewTerminalTool creates a terminal tool. timeoutSeconds <= 0 uses the
// default hard timeout of 30s.
func NewTerminalTool(timeoutSeconds int, safeMode bool) *TerminalTool {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTerminalTimeout
	}
	return &TerminalTool{timeout: timeout, safeMode: safeMode}
}

func (t *TerminalTool) Name() string { return "terminal" }

func (t *TerminalTool) Description() string {
	return "Run system commands. Use this for system operations, file management, and running programs."
}

func (t *TerminalTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

// Invoke gates on safe mode, then executes.
func (t *TerminalTool) Invoke(ctx context.Context, args map[string]any) Outcome {
	command := GetString(args, "command", "")
	if command == "" {
		return Failure("command is required")
	}
	if t.safeMode {
		return ConfirmationRequired(command)
	}
	return t.run(ctx, command)
}

func (t *TerminalTool) run(ctx context.Context, command string) (out Outcome) {
	// Process spawning is the engine's only real-world side effect; nothing
	// that happens here may escape as a panic.
	defer func() {
		if r := recover(); r != nil {
			out = Failure(fmt.Sprintf("command execution panicked: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var result strings.Builder
	if stdout.Len() > 0 {
		result.WriteString(stdout.String())
	}
	if stderr.Len() > 0 {
		if result.Len() > 0 {
			result.WriteString("\n")
		}
		result.WriteString("STDERR:\n")
		result.WriteString(stderr.String())
	}

	if ctx.Err() == context.DeadlineExceeded {
		return Failure(fmt.Sprintf("command timed out after %v", t.timeout))
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.WriteString(fmt.Sprintf("\nExit code: %d", exitErr.ExitCode()))
		} else {
			return Failure(fmt.Sprintf("error executing command: %v", err))
		}
	}

	if result.Len() == 0 {
		return Success("Command executed successfully (no output)")
	}
	return Success(result.String())
}
