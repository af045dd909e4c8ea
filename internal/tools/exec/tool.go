package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	execsafety "github.com/Juntar0/vllm-bot/internal/exec"
	"github.com/Juntar0/vllm-bot/internal/sandbox"
	"github.com/Juntar0/vllm-bot/internal/tools/security"
)

// ExecCmdTool implements exec_cmd: a command-allowlisted, timeout-bounded
// shell invocation rooted at the sandbox workspace. When the Constraints
// value runs in its enhanced variant (RejectsShellMetacharacters), commands
// are additionally screened by a quote-aware metacharacter analyzer before
// the allowlist check, and the rejection reason names the dangerous token.
type ExecCmdTool struct {
	constraints *sandbox.Constraints
}

// NewExecCmdTool builds an exec_cmd handler scoped to constraints.
func NewExecCmdTool(constraints *sandbox.Constraints) *ExecCmdTool {
	return &ExecCmdTool{constraints: constraints}
}

func (t *ExecCmdTool) Name() string { return "exec_cmd" }

func (t *ExecCmdTool) Description() string {
	return "Run a shell command inside the workspace, subject to the command allowlist and timeout."
}

func (t *ExecCmdTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "command": {"type": "string", "description": "Shell command to execute."},
    "timeout": {"type": "integer", "minimum": 0, "description": "Timeout in seconds (default: the configured ceiling)."}
  },
  "required": ["command"]
}`)
}

func (t *ExecCmdTool) Execute(ctx context.Context, params json.RawMessage) (*agentcore.ToolResult, error) {
	var input struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return fail(t.Name(), fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.Command == "" {
		return fail(t.Name(), "command is required"), nil
	}

	executable := firstToken(input.Command)

	if t.constraints.RejectsShellMetacharacters() {
		analysis := security.AnalyzeCommandQuoteAware(input.Command)
		if !analysis.IsSafe {
			return fail(t.Name(), fmt.Sprintf("Command rejected: %s", analysis.Reason)), nil
		}
		if _, err := execsafety.SanitizeExecutableValue(executable); err != nil {
			return fail(t.Name(), fmt.Sprintf("Command rejected: %v", err)), nil
		}
	}

	if !t.constraints.ValidateCommand(input.Command) {
		return failWithExitCode(t.Name(), fmt.Sprintf("Command not allowed: %s", executable), 1), nil
	}

	timeout := t.constraints.EffectiveTimeout(time.Duration(input.Timeout) * time.Second)
	result := Run(ctx, input.Command, t.constraints.AllowedRoot(), timeout)

	if result.TimedOut {
		return failWithExitCode(t.Name(), fmt.Sprintf("Command timed out after %ds", int(timeout.Seconds())), 124), nil
	}

	output := t.constraints.TruncateOutput(result.Output)
	if result.StartFailed {
		return &agentcore.ToolResult{
			ToolName: t.Name(),
			Success:  false,
			Error:    result.Err.Error(),
			ExitCode: 1,
			Duration: result.Duration,
		}, nil
	}

	// The shell ran to completion; its own exit code is informational, not
	// a Tool Runner failure; a nonzero exit from the executed command is
	// still a successful exec_cmd invocation.
	return &agentcore.ToolResult{
		ToolName: t.Name(),
		Success:  true,
		Output:   output,
		ExitCode: result.ExitCode,
		Duration: result.Duration,
	}, nil
}

func fail(toolName, message string) *agentcore.ToolResult {
	return &agentcore.ToolResult{ToolName: toolName, Success: false, Error: message}
}

func failWithExitCode(toolName, message string, exitCode int) *agentcore.ToolResult {
	return &agentcore.ToolResult{ToolName: toolName, Success: false, Error: message, ExitCode: exitCode}
}

func firstToken(command string) string {
	for i, r := range command {
		if r == ' ' || r == '\t' {
			return command[:i]
		}
	}
	return command
}
