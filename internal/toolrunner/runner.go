// Package toolrunner dispatches ToolCalls to registered Tools under the
// Constraints envelope and produces uniform ToolResults, appending an audit
// entry for every invocation regardless of outcome.
package toolrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
)

// AuditSink receives one entry per tool invocation. The concrete audit.Log
// implements this; tests may supply a stub.
type AuditSink interface {
	LogToolCall(loopID int, result agentcore.ToolResult, args json.RawMessage)
}

// Runner holds the registered tool catalog and validates arguments against
// each tool's schema before dispatch.
type Runner struct {
	tools map[string]agentcore.Tool
	audit AuditSink

	mu          sync.Mutex
	schemaCache map[string]*jsonschema.Schema
}

// New builds a Runner over tools, keyed by Name(). audit may be nil, in
// which case invocations are not recorded.
func New(tools []agentcore.Tool, audit AuditSink) *Runner {
	byName := make(map[string]agentcore.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &Runner{tools: byName, audit: audit, schemaCache: map[string]*jsonschema.Schema{}}
}

// Catalog returns the registered tools, for rendering into Planner prompts.
func (r *Runner) Catalog() []agentcore.Tool {
	out := make([]agentcore.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// ExecuteCalls runs each call in order against loopID and returns the
// uniform results, preserving call order.
func (r *Runner) ExecuteCalls(ctx context.Context, calls []agentcore.ToolCall, loopID int) []agentcore.ToolResult {
	results := make([]agentcore.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, r.ExecuteSingle(ctx, call, loopID))
	}
	return results
}

// ExecuteSingle resolves call to a handler, validates its arguments, runs
// it, and records an audit entry regardless of outcome. A panic or returned
// error from the handler is translated into a failed ToolResult rather than
// propagated.
func (r *Runner) ExecuteSingle(ctx context.Context, call agentcore.ToolCall, loopID int) (result agentcore.ToolResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = agentcore.ToolResult{
				ToolName: call.ToolName,
				Success:  false,
				Error:    fmt.Sprintf("tool panicked: %v", rec),
				Duration: time.Since(start),
			}
		}
		result.Duration = time.Since(start)
		if r.audit != nil {
			r.audit.LogToolCall(loopID, result, call.Args)
		}
	}()

	tool, ok := r.tools[call.ToolName]
	if !ok {
		return agentcore.ToolResult{
			ToolName: call.ToolName,
			Success:  false,
			Error:    fmt.Sprintf("Unknown tool: %s", call.ToolName),
		}
	}

	if err := r.validateArgs(tool, call.Args); err != nil {
		return agentcore.ToolResult{
			ToolName: call.ToolName,
			Success:  false,
			Error:    fmt.Sprintf("Invalid arguments: %v", err),
		}
	}

	out, err := tool.Execute(ctx, call.Args)
	if err != nil {
		return agentcore.ToolResult{
			ToolName: call.ToolName,
			Success:  false,
			Error:    err.Error(),
		}
	}
	if out == nil {
		return agentcore.ToolResult{
			ToolName: call.ToolName,
			Success:  false,
			Error:    "tool returned no result",
		}
	}
	out.ToolName = call.ToolName
	return *out
}

func (r *Runner) validateArgs(tool agentcore.Tool, args json.RawMessage) error {
	schema, err := r.compiledSchema(tool)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	raw := args
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return schema.Validate(decoded)
}

func (r *Runner) compiledSchema(tool agentcore.Tool) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.schemaCache[tool.Name()]; ok {
		return cached, nil
	}
	compiled, err := jsonschema.CompileString(tool.Name()+".schema.json", string(tool.Schema()))
	if err != nil {
		return nil, err
	}
	r.schemaCache[tool.Name()] = compiled
	return compiled, nil
}
