package exec

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Juntar0/vllm-bot/internal/sandbox"
)

func TestExecCmdAllowedRunsAndCapturesOutput(t *testing.T) {
	c, err := sandbox.New(t.TempDir(), []string{"echo"}, 5, 0, 0, false)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	tool := NewExecCmdTool(c)
	params, _ := json.Marshal(map[string]any{"command": "echo hello"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || res.ExitCode != 0 {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Output, "hello") {
		t.Fatalf("expected stdout in output, got %q", res.Output)
	}
}

func TestExecCmdDeniedByAllowlist(t *testing.T) {
	c, err := sandbox.New(t.TempDir(), []string{"ls", "cat"}, 5, 0, 0, false)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	tool := NewExecCmdTool(c)
	params, _ := json.Marshal(map[string]any{"command": "rm -rf /"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success || res.Error != "Command not allowed: rm" {
		t.Fatalf("expected allowlist denial, got %+v", res)
	}
}

func TestExecCmdTimeout(t *testing.T) {
	c, err := sandbox.New(t.TempDir(), []string{"sleep"}, 10, 0, 0, false)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	tool := NewExecCmdTool(c)
	params, _ := json.Marshal(map[string]any{"command": "sleep 5", "timeout": 1})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success || res.ExitCode != 124 || !strings.Contains(res.Error, "timed out after 1s") {
		t.Fatalf("expected timeout result, got %+v", res)
	}
}

func TestExecCmdNonzeroExitIsStillSuccess(t *testing.T) {
	c, err := sandbox.New(t.TempDir(), []string{"sh"}, 5, 0, 0, false)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	tool := NewExecCmdTool(c)
	params, _ := json.Marshal(map[string]any{"command": "sh -c 'exit 7'"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || res.ExitCode != 7 {
		t.Fatalf("expected successful invocation with exit_code 7, got %+v", res)
	}
}

func TestExecCmdEnhancedVariantRejectsMetacharacters(t *testing.T) {
	c, err := sandbox.New(t.TempDir(), nil, 5, 0, 0, true)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	tool := NewExecCmdTool(c)
	params, _ := json.Marshal(map[string]any{"command": "ls; rm -rf /"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "Command rejected") {
		t.Fatalf("expected metacharacter rejection, got %+v", res)
	}
}

func TestExecCmdEnhancedVariantRejectsOptionInjectionExecutable(t *testing.T) {
	c, err := sandbox.New(t.TempDir(), nil, 5, 0, 0, true)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	tool := NewExecCmdTool(c)
	params, _ := json.Marshal(map[string]any{"command": "-rf somefile"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "Command rejected") {
		t.Fatalf("expected option-injection rejection, got %+v", res)
	}
}

func TestExecCmdEnhancedVariantRejectsQuotedExecutable(t *testing.T) {
	c, err := sandbox.New(t.TempDir(), nil, 5, 0, 0, true)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	tool := NewExecCmdTool(c)
	params, _ := json.Marshal(map[string]any{"command": `"rm" -rf /`})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "Command rejected") {
		t.Fatalf("expected quoted-executable rejection, got %+v", res)
	}
}

func TestExecCmdBaseVariantSkipsExecutableSafetyScreen(t *testing.T) {
	c, err := sandbox.New(t.TempDir(), nil, 5, 0, 0, false)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	tool := NewExecCmdTool(c)
	params, _ := json.Marshal(map[string]any{"command": `"echo" hello`})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || !strings.Contains(res.Output, "hello") {
		t.Fatalf("expected base-mode command to reach the shell unscreened, got %+v", res)
	}
}
