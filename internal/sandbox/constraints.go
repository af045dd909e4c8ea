// Package sandbox implements the Constraints value: path-containment,
// command-allowlist, timeout, and output-size policy evaluated by the Tool
// Runner before and after every tool invocation.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	execsafety "github.com/Juntar0/vllm-bot/internal/exec"
)

// Constraints is immutable after construction.
type Constraints struct {
	allowedRoot         string
	commandAllowlist    map[string]struct{}
	timeoutSec          int
	maxOutputSize       int
	maxStderrSize       int
	rejectShellMetachar bool
}

// New resolves allowedRoot to its canonical absolute form, creating it if
// missing, and builds a Constraints value. An empty commandAllowlist means
// allow-all. rejectShellMeta enables the "enhanced exec_cmd variant" design
// note: commands containing shell metacharacters are rejected outright
// before allowlist validation, independent of whether a shell is ultimately
// used to run them.
func New(allowedRoot string, commandAllowlist []string, timeoutSec, maxOutputSize, maxStderrSize int, rejectShellMeta bool) (*Constraints, error) {
	abs, err := filepath.Abs(allowedRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve allowed root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(abs, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create allowed root: %w", mkErr)
			}
			resolved = abs
		} else {
			return nil, fmt.Errorf("resolve allowed root: %w", err)
		}
	}

	allowlist := make(map[string]struct{}, len(commandAllowlist))
	for _, c := range commandAllowlist {
		allowlist[c] = struct{}{}
	}

	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	if maxOutputSize <= 0 {
		maxOutputSize = 200000
	}
	if maxStderrSize <= 0 {
		maxStderrSize = 50000
	}

	return &Constraints{
		allowedRoot:         resolved,
		commandAllowlist:    allowlist,
		timeoutSec:          timeoutSec,
		maxOutputSize:       maxOutputSize,
		maxStderrSize:       maxStderrSize,
		rejectShellMetachar: rejectShellMeta,
	}, nil
}

// AllowedRoot returns the canonical sandbox root.
func (c *Constraints) AllowedRoot() string {
	return c.allowedRoot
}

// ValidatePath resolves p against the allowed root (following symlinks) and
// reports whether the result is the root itself or a descendant of it. An
// empty path is rejected.
func (c *Constraints) ValidatePath(p string) bool {
	resolved, ok := c.ResolvePath(p)
	return ok && resolved != ""
}

// ResolvePath resolves p (which may be relative to the allowed root, or
// already absolute) to its canonical absolute form, and reports whether it
// stays within the allowed root. On success it returns the resolved path.
func (c *Constraints) ResolvePath(p string) (string, bool) {
	if p == "" {
		return "", false
	}

	var candidate string
	if filepath.IsAbs(p) {
		candidate = p
	} else {
		candidate = filepath.Join(c.allowedRoot, p)
	}

	// Resolve symlinks where possible; a not-yet-existing target (e.g. a
	// write_file destination) still needs syntactic containment checked.
	resolved := candidate
	if evaled, err := filepath.EvalSymlinks(candidate); err == nil {
		resolved = evaled
	} else {
		resolved = filepath.Clean(candidate)
	}

	rel, err := filepath.Rel(c.allowedRoot, resolved)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return resolved, true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}

// ValidateCommand whitespace-splits cmd and reports whether its first token
// is allowed. An empty allowlist allows everything; an empty command is
// always rejected.
func (c *Constraints) ValidateCommand(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}
	if len(c.commandAllowlist) == 0 {
		return true
	}
	_, ok := c.commandAllowlist[fields[0]]
	return ok
}

// RejectsShellMetacharacters reports whether the enhanced exec_cmd variant
// is active for this Constraints value.
func (c *Constraints) RejectsShellMetacharacters() bool {
	return c.rejectShellMetachar
}

// HasDangerousMetacharacters reports whether cmd contains a shell
// metacharacter the enhanced variant rejects outright.
func (c *Constraints) HasDangerousMetacharacters(cmd string) bool {
	return execsafety.ShellMetachars.MatchString(cmd)
}

// TruncateOutput returns s unchanged if it fits within max; otherwise it
// keeps the first and last max/2 characters and inserts a marker describing
// how many characters were hidden.
func TruncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	kept := max / 2
	hidden := len(s) - max
	marker := fmt.Sprintf("\n...(output truncated, %d chars hidden)...\n", hidden)
	return s[:kept] + marker + s[len(s)-kept:]
}

// TruncateOutput truncates s against this Constraints' MaxOutputSize.
func (c *Constraints) TruncateOutput(s string) string {
	return TruncateOutput(s, c.maxOutputSize)
}

// TruncateStderr truncates s against this Constraints' MaxStderrSize.
func (c *Constraints) TruncateStderr(s string) string {
	return TruncateOutput(s, c.maxStderrSize)
}

// EffectiveTimeout returns the smaller of requested and the configured
// ceiling. A zero or negative requested duration means "unbounded by the
// caller"; the ceiling alone applies.
func (c *Constraints) EffectiveTimeout(requested time.Duration) time.Duration {
	ceiling := time.Duration(c.timeoutSec) * time.Second
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}
