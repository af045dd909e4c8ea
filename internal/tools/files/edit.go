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

// EditFileTool implements edit_file: a single, unambiguous find/replace
// against a file's full contents. Unlike a multi-edit patcher, it requires
// oldText to occur exactly once.
type EditFileTool struct {
	constraints *sandbox.Constraints
}

// NewEditFileTool builds an edit_file handler scoped to constraints.
func NewEditFileTool(constraints *sandbox.Constraints) *EditFileTool {
	return &EditFileTool{constraints: constraints}
}

func (t *EditFileTool) Name() string { return "edit_file" }

func (t *EditFileTool) Description() string {
	return "Replace one unique occurrence of text in a file with new text."
}

func (t *EditFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "File path relative to the workspace."},
    "oldText": {"type": "string", "description": "Exact text to replace; must occur exactly once."},
    "newText": {"type": "string", "description": "Replacement text."}
  },
  "required": ["path", "oldText", "newText"]
}`)
}

func (t *EditFileTool) Execute(_ context.Context, params json.RawMessage) (*agentcore.ToolResult, error) {
	var input struct {
		Path    string `json:"path"`
		OldText string `json:"oldText"`
		NewText string `json:"newText"`
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
	content := string(data)

	count := strings.Count(content, input.OldText)
	if count == 0 {
		return fail(t.Name(), fmt.Sprintf("Text not found in %s", input.Path)), nil
	}
	if count > 1 {
		return fail(t.Name(), fmt.Sprintf("Text appears %d times in %s (must be unique)", count, input.Path)), nil
	}

	updated := strings.Replace(content, input.OldText, input.NewText, 1)
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return fail(t.Name(), fmt.Sprintf("write file: %v", err)), nil
	}

	return ok(t.Name(), fmt.Sprintf("Edited %s", input.Path)), nil
}
