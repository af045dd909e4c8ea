// Package audit implements the append-only Audit Log: one JSONL entry per
// tool call, Planner decision, Responder response, and loop-level error.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
)

const (
	consoleTruncateLen  = 500
	responsePreviewLen  = 300
)

// EventType tags a non-tool-call audit entry. Tool-call entries are tagged
// EventToolCall explicitly, resolving the filtering ambiguity the untagged
// original left behind.
type EventType string

const (
	EventToolCall          EventType = "tool_call"
	EventPlannerDecision   EventType = "planner_decision"
	EventResponderResponse EventType = "responder_response"
	EventError             EventType = "error"
)

// Event is one append-only audit record. Fields are populated according to
// EventType; unused fields are omitted from the JSON encoding.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LoopID    int       `json:"loop_id"`
	EventType EventType `json:"event_type"`

	// Tool-call fields.
	ToolName    string          `json:"tool_name,omitempty"`
	Args        json.RawMessage `json:"args,omitempty"`
	Output      string          `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	ExitCode    int             `json:"exit_code,omitempty"`
	DurationSec float64         `json:"duration_sec,omitempty"`
	Success     bool            `json:"success,omitempty"`

	// Planner-decision fields.
	Decision  *agentcore.PlannerOutput `json:"decision,omitempty"`
	Reasoning string                   `json:"reasoning,omitempty"`

	// Responder-response fields.
	ResponsePreview string `json:"response_preview,omitempty"`

	// Error fields.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Config configures a Log.
type Config struct {
	// Enabled gates every Log* call; when false, Log is a no-op.
	Enabled bool
	// LogPath is the JSONL file entries are appended to. Defaults to
	// "./data/runlog.jsonl" when empty.
	LogPath string
}

// Log is an append-only audit trail: every entry is written to an in-memory
// slice and, if enabled, appended to a JSONL file that is never rewound;
// LoadFromFile is the only way to repopulate the in-memory slice from disk.
type Log struct {
	cfg Config

	mu      sync.Mutex
	file    *os.File
	entries []Event
}

// New builds a Log from cfg. If cfg.Enabled is false, the returned Log
// accepts writes silently without opening a file.
func New(cfg Config) (*Log, error) {
	if !cfg.Enabled {
		return &Log{cfg: cfg}, nil
	}
	if cfg.LogPath == "" {
		cfg.LogPath = "./data/runlog.jsonl"
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", agentcore.ErrAuditAppendFailed, err)
	}
	return &Log{cfg: cfg, file: f}, nil
}

// Close closes the backing file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// LogToolCall implements toolrunner.AuditSink.
func (l *Log) LogToolCall(loopID int, result agentcore.ToolResult, args json.RawMessage) {
	l.append(Event{
		LoopID:      loopID,
		EventType:   EventToolCall,
		ToolName:    result.ToolName,
		Args:        args,
		Output:      truncate(result.Output, consoleTruncateLen),
		Error:       truncate(result.Error, consoleTruncateLen),
		ExitCode:    result.ExitCode,
		DurationSec: result.Duration.Seconds(),
		Success:     result.Success,
	})
}

// LogPlannerDecision implements agentloop.AuditSink.
func (l *Log) LogPlannerDecision(loopID int, out agentcore.PlannerOutput) {
	decision := out
	l.append(Event{
		LoopID:    loopID,
		EventType: EventPlannerDecision,
		Decision:  &decision,
		Reasoning: truncate(out.ReasonBrief, consoleTruncateLen),
	})
}

// LogResponderResponse implements agentloop.AuditSink.
func (l *Log) LogResponderResponse(loopID int, out agentcore.ResponderOutput) {
	l.append(Event{
		LoopID:          loopID,
		EventType:       EventResponderResponse,
		ResponsePreview: truncate(out.Response, responsePreviewLen),
	})
}

// LogError implements agentloop.AuditSink.
func (l *Log) LogError(loopID int, err error) {
	if err == nil {
		return
	}
	l.append(Event{
		LoopID:       loopID,
		EventType:    EventError,
		ErrorMessage: err.Error(),
	})
}

func (l *Log) append(e Event) {
	if !l.cfg.Enabled {
		return
	}
	e.ID = uuid.NewString()
	e.Timestamp = time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if l.file == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	data = append(data, '\n')
	l.file.Write(data)
}

// GetEntries returns every recorded entry, in append order.
func (l *Log) GetEntries() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.entries...)
}

// GetEntriesForLoop returns the entries recorded for loopID, in append order.
func (l *Log) GetEntriesForLoop(loopID int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.entries {
		if e.LoopID == loopID {
			out = append(out, e)
		}
	}
	return out
}

// GetLastN returns the last n entries, or all entries if there are fewer
// than n.
func (l *Log) GetLastN(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n >= len(l.entries) {
		return append([]Event(nil), l.entries...)
	}
	return append([]Event(nil), l.entries[len(l.entries)-n:]...)
}

// ToolStats aggregates one tool's calls within a ToolSummary.
type ToolStats struct {
	Calls            int     `json:"calls"`
	Successful       int     `json:"successful"`
	Failed           int     `json:"failed"`
	TotalDurationSec float64 `json:"total_duration_sec"`
}

// ToolSummary aggregates every tool_call entry recorded so far.
type ToolSummary struct {
	TotalCalls       int                   `json:"total_calls"`
	Successful       int                   `json:"successful"`
	Failed           int                   `json:"failed"`
	ByTool           map[string]*ToolStats `json:"by_tool"`
	TotalDurationSec float64               `json:"total_duration_sec"`
}

// GetToolSummary aggregates every entry tagged EventToolCall. Filtering on
// equality (event_type == "tool_call") rather than the inverted
// event_type != "tool_call" check is the corrected behavior; the original
// comparison excluded tool-call entries from their own summary.
func (l *Log) GetToolSummary() ToolSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := ToolSummary{ByTool: make(map[string]*ToolStats)}
	for _, e := range l.entries {
		if e.EventType != EventToolCall {
			continue
		}
		summary.TotalCalls++
		summary.TotalDurationSec += e.DurationSec
		if e.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}

		stats, ok := summary.ByTool[e.ToolName]
		if !ok {
			stats = &ToolStats{}
			summary.ByTool[e.ToolName] = stats
		}
		stats.Calls++
		stats.TotalDurationSec += e.DurationSec
		if e.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}
	return summary
}

// LoopErrorDetail names one tool error surfaced during a loop.
type LoopErrorDetail struct {
	Tool  string `json:"tool"`
	Error string `json:"error"`
}

// LoopAnalysis summarizes one loop iteration's recorded entries.
type LoopAnalysis struct {
	LoopID           int               `json:"loop_id"`
	EntriesCount     int               `json:"entries_count"`
	ToolsCalled      []string          `json:"tools_called"`
	TotalDurationSec float64           `json:"total_duration_sec"`
	AllSuccessful    bool              `json:"all_successful"`
	Errors           []LoopErrorDetail `json:"errors"`
}

// AnalyzeLoop reports tools called, success, duration, and errors for
// loopID based on its recorded entries.
func (l *Log) AnalyzeLoop(loopID int) LoopAnalysis {
	entries := l.GetEntriesForLoop(loopID)

	analysis := LoopAnalysis{LoopID: loopID, EntriesCount: len(entries), AllSuccessful: true}
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.EventType != EventToolCall {
			continue
		}
		if !seen[e.ToolName] {
			seen[e.ToolName] = true
			analysis.ToolsCalled = append(analysis.ToolsCalled, e.ToolName)
		}
		analysis.TotalDurationSec += e.DurationSec
		if !e.Success {
			analysis.AllSuccessful = false
			errMsg := e.Error
			if errMsg == "" {
				errMsg = "Unknown error"
			}
			analysis.Errors = append(analysis.Errors, LoopErrorDetail{Tool: e.ToolName, Error: errMsg})
		}
	}
	return analysis
}

// LoadFromFile replaces the in-memory entries with the contents of
// cfg.LogPath, one JSON object per line. Entries already on disk before
// this process started are only visible after calling this explicitly; New
// never reads the existing file.
func (l *Log) LoadFromFile() error {
	if l.cfg.LogPath == "" {
		return nil
	}
	f, err := os.Open(l.cfg.LogPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var loaded []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		loaded = append(loaded, e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = loaded
	return scanner.Err()
}

// Clear removes every in-memory entry and deletes the backing file.
func (l *Log) Clear() error {
	l.mu.Lock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.entries = nil
	path := l.cfg.LogPath
	l.mu.Unlock()

	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if l.cfg.Enabled {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		l.mu.Lock()
		l.file = f
		l.mu.Unlock()
	}
	return nil
}

// ExportSummary renders GetToolSummary as a short human-readable report.
func (l *Log) ExportSummary() string {
	summary := l.GetToolSummary()
	var b strings.Builder
	b.WriteString("=== Audit Log Summary ===\n")
	fmt.Fprintf(&b, "Total tool calls: %d\n", summary.TotalCalls)
	fmt.Fprintf(&b, "Successful: %d\n", summary.Successful)
	fmt.Fprintf(&b, "Failed: %d\n", summary.Failed)
	fmt.Fprintf(&b, "Total duration: %.2fs\n\n", summary.TotalDurationSec)
	b.WriteString("By Tool:\n")
	for name, stats := range summary.ByTool {
		fmt.Fprintf(&b, "  %s: %d calls (%d✓ %d✗) %.2fs\n",
			name, stats.Calls, stats.Successful, stats.Failed, stats.TotalDurationSec)
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
