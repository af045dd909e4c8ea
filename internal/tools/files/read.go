package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/sandbox"
)

// ReadFileTool implements read_file: a line-sliced read of a UTF-8 text
// file, bounded by the Constraints output size.
type ReadFileTool struct {
	constraints *sandbox.Constraints
}

// NewReadFileTool builds a read_file handler scoped to constraints.
func NewReadFileTool(constraints *sandbox.Constraints) *ReadFileTool {
	return &ReadFileTool{constraints: constraints}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read a file from the workspace, optionally slicing by line offset and limit."
}

func (t *ReadFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "File path relative to the workspace."},
    "offset": {"type": "integer", "minimum": 0, "description": "Line offset to start reading from (default 0)."},
    "limit": {"type": "integer", "minimum": 0, "description": "Maximum number of lines to return (default: unbounded)."}
  },
  "required": ["path"]
}`)
}

func (t *ReadFileTool) Execute(_ context.Context, params json.RawMessage) (*agentcore.ToolResult, error) {
	var input struct {
		Path   string `json:"path"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return fail(t.Name(), fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.Path == "" {
		return fail(t.Name(), "path is required"), nil
	}
	if input.Offset < 0 {
		return fail(t.Name(), "offset must be >= 0"), nil
	}

	resolved, errResult := resolve(t.constraints, t.Name(), input.Path)
	if errResult != nil {
		return errResult, nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fail(t.Name(), fmt.Sprintf("No such file: %s", input.Path)), nil
		}
		return fail(t.Name(), err.Error()), nil
	}
	if info.IsDir() {
		return fail(t.Name(), fmt.Sprintf("Not a file: %s", input.Path)), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return fail(t.Name(), err.Error()), nil
	}

	lines := strings.Split(string(data), "\n")
	start := input.Offset
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if input.Limit > 0 && start+input.Limit < end {
		end = start + input.Limit
	}

	content := strings.Join(lines[start:end], "\n")
	return ok(t.Name(), t.constraints.TruncateOutput(content)), nil
}
