// Package files implements the four filesystem tool handlers: list_dir,
// read_file, write_file, and edit_file. Every handler resolves paths through
// a shared sandbox.Constraints value before touching the filesystem.
package files

import (
	"fmt"
	"path/filepath"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/sandbox"
)

func resolve(c *sandbox.Constraints, toolName, path string) (string, *agentcore.ToolResult) {
	if path == "" {
		path = "."
	}
	resolved, ok := c.ResolvePath(path)
	if !ok {
		return "", fail(toolName, fmt.Sprintf("Path outside allowed root: %s", path))
	}
	return resolved, nil
}

func relToRoot(c *sandbox.Constraints, abs string) string {
	rel, err := filepath.Rel(c.AllowedRoot(), abs)
	if err != nil {
		return abs
	}
	return rel
}

func ok(toolName, output string) *agentcore.ToolResult {
	return &agentcore.ToolResult{ToolName: toolName, Success: true, Output: output}
}

func fail(toolName, message string) *agentcore.ToolResult {
	return &agentcore.ToolResult{ToolName: toolName, Success: false, Error: message}
}
