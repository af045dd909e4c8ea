package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runlog.jsonl")
	l, err := New(Config{Enabled: true, LogPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLogToolCallAppendsEntryTaggedToolCall(t *testing.T) {
	l := newTestLog(t)
	l.LogToolCall(1, agentcore.ToolResult{ToolName: "read_file", Success: true, Output: "hello", Duration: 10 * time.Millisecond}, json.RawMessage(`{"path":"a.txt"}`))

	entries := l.GetEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].EventType != EventToolCall {
		t.Fatalf("expected EventToolCall, got %q", entries[0].EventType)
	}
	if entries[0].ToolName != "read_file" || entries[0].Output != "hello" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].ID == "" {
		t.Fatal("expected a generated ID")
	}
}

func TestLogToolCallTruncatesOutput(t *testing.T) {
	l := newTestLog(t)
	long := strings.Repeat("x", consoleTruncateLen+50)
	l.LogToolCall(1, agentcore.ToolResult{ToolName: "read_file", Success: true, Output: long}, nil)

	entries := l.GetEntries()
	if !strings.HasSuffix(entries[0].Output, "...(truncated)") {
		t.Fatalf("expected truncated output, got length %d", len(entries[0].Output))
	}
}

func TestDisabledLogIsNoOp(t *testing.T) {
	l, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.LogToolCall(1, agentcore.ToolResult{ToolName: "x", Success: true}, nil)
	if len(l.GetEntries()) != 0 {
		t.Fatal("expected no entries for a disabled log")
	}
}

func TestGetToolSummaryFiltersOnEquality(t *testing.T) {
	l := newTestLog(t)
	l.LogToolCall(1, agentcore.ToolResult{ToolName: "read_file", Success: true, Duration: time.Second}, nil)
	l.LogToolCall(1, agentcore.ToolResult{ToolName: "read_file", Success: false, Duration: 2 * time.Second}, nil)
	l.LogToolCall(1, agentcore.ToolResult{ToolName: "exec_cmd", Success: true, Duration: 500 * time.Millisecond}, nil)
	l.LogPlannerDecision(1, agentcore.PlannerOutput{NeedTools: true, ReasonBrief: "testing"})

	summary := l.GetToolSummary()
	if summary.TotalCalls != 3 {
		t.Fatalf("expected 3 tool calls counted, got %d", summary.TotalCalls)
	}
	if summary.Successful != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected success/failure split: %+v", summary)
	}
	readStats, ok := summary.ByTool["read_file"]
	if !ok || readStats.Calls != 2 || readStats.Successful != 1 || readStats.Failed != 1 {
		t.Fatalf("unexpected read_file stats: %+v", readStats)
	}
}

func TestAnalyzeLoopCollectsErrors(t *testing.T) {
	l := newTestLog(t)
	l.LogToolCall(5, agentcore.ToolResult{ToolName: "exec_cmd", Success: false, Error: "boom", Duration: time.Second}, nil)
	l.LogToolCall(5, agentcore.ToolResult{ToolName: "read_file", Success: true, Duration: time.Second}, nil)
	l.LogToolCall(6, agentcore.ToolResult{ToolName: "grep", Success: true}, nil)

	analysis := l.AnalyzeLoop(5)
	if analysis.EntriesCount != 2 {
		t.Fatalf("expected 2 entries for loop 5, got %d", analysis.EntriesCount)
	}
	if analysis.AllSuccessful {
		t.Fatal("expected AllSuccessful=false")
	}
	if len(analysis.Errors) != 1 || analysis.Errors[0].Error != "boom" {
		t.Fatalf("unexpected errors: %+v", analysis.Errors)
	}
	if len(analysis.ToolsCalled) != 2 {
		t.Fatalf("expected 2 distinct tools, got %+v", analysis.ToolsCalled)
	}
}

func TestLogErrorRecordsMessage(t *testing.T) {
	l := newTestLog(t)
	l.LogError(3, errors.New("agent loop failed at loop 3: boom"))

	entries := l.GetEntries()
	if len(entries) != 1 || entries[0].EventType != EventError {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if !strings.Contains(entries[0].ErrorMessage, "boom") {
		t.Fatalf("unexpected error message: %q", entries[0].ErrorMessage)
	}
}

func TestLoadFromFileRepopulatesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runlog.jsonl")
	l, err := New(Config{Enabled: true, LogPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.LogToolCall(1, agentcore.ToolResult{ToolName: "grep", Success: true}, nil)
	l.Close()

	reopened, err := New(Config{Enabled: true, LogPath: path})
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer reopened.Close()
	if len(reopened.GetEntries()) != 0 {
		t.Fatal("expected New to not rewind the existing file")
	}
	if err := reopened.LoadFromFile(); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(reopened.GetEntries()) != 1 {
		t.Fatalf("expected 1 entry after LoadFromFile, got %d", len(reopened.GetEntries()))
	}
}

func TestClearRemovesEntriesAndFile(t *testing.T) {
	l := newTestLog(t)
	l.LogToolCall(1, agentcore.ToolResult{ToolName: "grep", Success: true}, nil)
	if err := l.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(l.GetEntries()) != 0 {
		t.Fatal("expected entries cleared")
	}
	info, err := os.Stat(l.cfg.LogPath)
	if err != nil {
		t.Fatalf("expected log file to be recreated, stat failed: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected recreated log file to be empty, got size %d", info.Size())
	}
}
