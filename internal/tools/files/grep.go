package files

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/sandbox"
)

// GrepTool implements grep: a substring (not regex) search over a file or,
// recursively, a directory tree. Files that cannot be read as UTF-8 are
// silently skipped rather than failing the whole search.
type GrepTool struct {
	constraints *sandbox.Constraints
}

// NewGrepTool builds a grep handler scoped to constraints.
func NewGrepTool(constraints *sandbox.Constraints) *GrepTool {
	return &GrepTool{constraints: constraints}
}

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Description() string {
	return "Search for a literal substring in a file, or recursively across a directory."
}

func (t *GrepTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "pattern": {"type": "string", "description": "Literal substring to search for."},
    "path": {"type": "string", "description": "File or directory to search (default \".\")."}
  },
  "required": ["pattern"]
}`)
}

func (t *GrepTool) Execute(_ context.Context, params json.RawMessage) (*agentcore.ToolResult, error) {
	var input struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return fail(t.Name(), fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.Pattern == "" {
		return fail(t.Name(), "pattern is required"), nil
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

	var matches []string
	if info.IsDir() {
		var files []string
		_ = filepath.Walk(resolved, func(p string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil || fi.IsDir() {
				return nil
			}
			files = append(files, p)
			return nil
		})
		sort.Strings(files)
		for _, f := range files {
			matches = append(matches, grepFile(t.constraints, f, input.Pattern)...)
		}
	} else {
		matches = grepFile(t.constraints, resolved, input.Pattern)
	}

	output := "(no matches)"
	if len(matches) > 0 {
		output = strings.Join(matches, "\n")
	}
	return ok(t.Name(), t.constraints.TruncateOutput(output)), nil
}

func grepFile(c *sandbox.Constraints, path, pattern string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var matches []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	rel := relToRoot(c, path)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !utf8.ValidString(line) {
			return nil
		}
		if strings.Contains(line, pattern) {
			matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, lineNo, line))
		}
	}
	if scanner.Err() != nil {
		return nil
	}
	return matches
}
