package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/sandbox"
)

// WriteFileTool implements write_file: create-or-overwrite of a file's full
// contents, creating parent directories as needed.
type WriteFileTool struct {
	constraints *sandbox.Constraints
}

// NewWriteFileTool builds a write_file handler scoped to constraints.
func NewWriteFileTool(constraints *sandbox.Constraints) *WriteFileTool {
	return &WriteFileTool{constraints: constraints}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Write content to a file in the workspace, overwriting it if it already exists."
}

func (t *WriteFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "File path relative to the workspace."},
    "content": {"type": "string", "description": "Full file contents to write."}
  },
  "required": ["path", "content"]
}`)
}

func (t *WriteFileTool) Execute(_ context.Context, params json.RawMessage) (*agentcore.ToolResult, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return fail(t.Name(), fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.Path == "" {
		return fail(t.Name(), "path is required"), nil
	}

	resolved, errResult := resolve(t.constraints, t.Name(), input.Path)
	if errResult != nil {
		return errResult, nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fail(t.Name(), fmt.Sprintf("create directory: %v", err)), nil
	}
	if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
		return fail(t.Name(), fmt.Sprintf("write file: %v", err)), nil
	}

	rel := relToRoot(t.constraints, resolved)
	return ok(t.Name(), fmt.Sprintf("Wrote %d bytes to %s", len(input.Content), rel)), nil
}
