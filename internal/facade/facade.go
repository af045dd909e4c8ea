// Package facade implements the Conversational Façade: a single-turn,
// single-transcript-per-user driver that is an alternative to the Agent
// Loop for linear chat usage. It keeps one persistent messages list per
// user key and resolves tool calls inline rather than through State.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/modelclient"
	"github.com/Juntar0/vllm-bot/internal/toolrunner"
)

const defaultMaxIterations = 5

const toolCallMarker = "TOOL_CALL:"

// Facade drives one linear chat per user key, extracting tool calls from
// model replies: native function-calling first, the free-text TOOL_CALL:
// scanner only when a reply carries zero native tool calls.
type Facade struct {
	client        *modelclient.Client
	toolRunner    *toolrunner.Runner
	systemPrompt  string
	catalog       []modelclient.ToolSpec
	maxIterations int

	mu          sync.Mutex
	transcripts map[string][]modelclient.Message
}

// New builds a Facade. systemPrompt is the rendered system message sent at
// the start of every user's transcript; catalog is offered to the model as
// native functions on every turn.
func New(client *modelclient.Client, toolRunner *toolrunner.Runner, systemPrompt string, catalog []modelclient.ToolSpec) *Facade {
	return &Facade{
		client:        client,
		toolRunner:    toolRunner,
		systemPrompt:  systemPrompt,
		catalog:       catalog,
		maxIterations: defaultMaxIterations,
		transcripts:   make(map[string][]modelclient.Message),
	}
}

// BuildSystemPrompt composes a system message from SystemPromptConfig, the
// static strings spec §3 assigns to the Conversational Façade.
func BuildSystemPrompt(cfg agentcore.SystemPromptConfig) string {
	var b strings.Builder
	b.WriteString(cfg.Role)
	if cfg.WorkspaceNote != "" {
		b.WriteString("\n\n")
		b.WriteString(cfg.WorkspaceNote)
	}
	if cfg.ToolsNote != "" {
		b.WriteString("\n\n")
		b.WriteString(cfg.ToolsNote)
	}
	return b.String()
}

// Handle appends userMessage to userKey's transcript, resolves up to
// maxIterations rounds of tool calls, and returns the final assistant text.
func (f *Facade) Handle(ctx context.Context, userKey, userMessage string) (string, error) {
	f.mu.Lock()
	transcript, ok := f.transcripts[userKey]
	if !ok {
		transcript = []modelclient.Message{{Role: "system", Content: f.systemPrompt}}
	}
	transcript = append(transcript, modelclient.Message{Role: "user", Content: userMessage})
	f.mu.Unlock()

	for iter := 0; iter < f.maxIterations; iter++ {
		resp, err := f.client.ChatCompletion(ctx, transcript, f.catalog, false)
		if err != nil {
			return "", err
		}
		text, err := resp.MessageText()
		if err != nil {
			return "", err
		}
		transcript = append(transcript, modelclient.Message{Role: "assistant", Content: text})

		calls := resolveToolCalls(resp, text)
		if len(calls) == 0 {
			f.saveTranscript(userKey, transcript)
			return text, nil
		}

		results := f.toolRunner.ExecuteCalls(ctx, calls, iter)
		for _, r := range results {
			transcript = append(transcript, modelclient.Message{Role: "user", Content: renderToolResult(r)})
		}
	}

	f.saveTranscript(userKey, transcript)
	return "Reached the maximum number of tool-call iterations for this message without a final answer.", nil
}

func (f *Facade) saveTranscript(userKey string, transcript []modelclient.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[userKey] = transcript
}

// Reset drops userKey's transcript, starting its next Handle call fresh.
func (f *Facade) Reset(userKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.transcripts, userKey)
}

func renderToolResult(r agentcore.ToolResult) string {
	if r.Success {
		return fmt.Sprintf("Tool %s result: %s", r.ToolName, r.Output)
	}
	return fmt.Sprintf("Tool %s failed: %s", r.ToolName, r.Error)
}

// resolveToolCalls implements the double-parsing resolution: native
// tool_calls win outright, and the free-text TOOL_CALL: scanner only runs
// when the reply carries none.
func resolveToolCalls(resp *modelclient.Response, text string) []agentcore.ToolCall {
	native := resp.NativeToolCalls()
	if len(native) > 0 {
		calls := make([]agentcore.ToolCall, 0, len(native))
		for _, n := range native {
			calls = append(calls, agentcore.ToolCall{ToolName: n.Name, Args: json.RawMessage(n.Arguments)})
		}
		return calls
	}
	return extractFreeTextCalls(text)
}

// extractFreeTextCalls scans text for zero or more `TOOL_CALL: { ... }`
// blocks using a brace-depth state machine tolerant of nested objects and
// escaped/quoted strings. A candidate block that fails to parse as JSON is
// dropped and scanning resumes after it.
func extractFreeTextCalls(text string) []agentcore.ToolCall {
	var calls []agentcore.ToolCall

	pos := 0
	for {
		idx := strings.Index(text[pos:], toolCallMarker)
		if idx < 0 {
			break
		}
		markerEnd := pos + idx + len(toolCallMarker)

		braceStart := markerEnd
		for braceStart < len(text) && (text[braceStart] == ' ' || text[braceStart] == '\t' || text[braceStart] == '\n' || text[braceStart] == '\r') {
			braceStart++
		}
		if braceStart >= len(text) || text[braceStart] != '{' {
			pos = markerEnd
			continue
		}

		braceEnd, ok := matchBrace(text, braceStart)
		if !ok {
			pos = markerEnd
			continue
		}

		block := text[braceStart : braceEnd+1]
		var decoded struct {
			Name string          `json:"name"`
			Args json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal([]byte(block), &decoded); err == nil && decoded.Name != "" {
			calls = append(calls, agentcore.ToolCall{ToolName: decoded.Name, Args: decoded.Args})
		}

		pos = braceEnd + 1
	}

	return calls
}

// matchBrace returns the index of the '}' matching the '{' at start,
// tracking string literals and escape sequences so braces inside a JSON
// string value don't affect depth.
func matchBrace(text string, start int) (int, bool) {
	const (
		normal = iota
		inString
		escape
	)

	state := normal
	depth := 0
	for i := start; i < len(text); i++ {
		c := text[i]
		switch state {
		case escape:
			state = inString
		case inString:
			switch c {
			case '\\':
				state = escape
			case '"':
				state = normal
			}
		default:
			switch c {
			case '"':
				state = inString
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}
