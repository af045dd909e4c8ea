package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/sandbox"
)

// ListDirTool implements list_dir: a sorted, one-entry-per-line directory
// listing, directories suffixed with "/".
type ListDirTool struct {
	constraints *sandbox.Constraints
}

// NewListDirTool builds a list_dir handler scoped to constraints.
func NewListDirTool(constraints *sandbox.Constraints) *ListDirTool {
	return &ListDirTool{constraints: constraints}
}

func (t *ListDirTool) Name() string { return "list_dir" }

func (t *ListDirTool) Description() string {
	return "List the entries of a directory in the workspace, sorted by name."
}

func (t *ListDirTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Directory path relative to the workspace (default \".\")."}
  }
}`)
}

func (t *ListDirTool) Execute(_ context.Context, params json.RawMessage) (*agentcore.ToolResult, error) {
	var input struct {
		Path string `json:"path"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return fail(t.Name(), fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	if input.Path == "" {
		input.Path = "."
	}

	resolved, errResult := resolve(t.constraints, t.Name(), input.Path)
	if errResult != nil {
		return errResult, nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return fail(t.Name(), fmt.Sprintf("No such path: %s", input.Path)), nil
		}
		return fail(t.Name(), err.Error()), nil
	}
	if !info.IsDir() {
		return fail(t.Name(), fmt.Sprintf("Not a directory: %s", input.Path)), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return fail(t.Name(), err.Error()), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	output := "(empty directory)"
	if len(names) > 0 {
		output = strings.Join(names, "\n")
	}
	return ok(t.Name(), t.constraints.TruncateOutput(output)), nil
}
