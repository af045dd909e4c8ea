package agentcore

import (
	"context"
	"encoding/json"
)

// Tool is one of the six operations the Tool Runner exposes:
// list_dir, read_file, write_file, edit_file, exec_cmd, grep.
type Tool interface {
	// Name returns the tool name used in ToolCall.ToolName and in the
	// tools catalog rendered to the model.
	Name() string

	// Description is a natural-language summary shown to the model.
	Description() string

	// Schema is the JSON Schema for this tool's arguments.
	Schema() json.RawMessage

	// Execute runs the tool against params, which satisfy Schema().
	// A returned error represents a handler-level exception (translated by
	// the Tool Runner into a failed ToolResult); expected failures (bad
	// path, bad command, ambiguous edit) should instead be signaled via a
	// non-nil *ToolError wrapped in the returned error, or simply by the
	// returned ToolResult having Success=false.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}
