// Package planner implements the Planner: the LLM-backed component that
// decides which tools to call next and emits a strict JSON decision.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/memory"
	"github.com/Juntar0/vllm-bot/internal/modelclient"
	"github.com/Juntar0/vllm-bot/internal/state"
)

const maxReasonBriefLen = 300

const instructionBlock = `You are the planning component of an autonomous agent. Respond with a single JSON object and nothing else — no prose before or after it. The object must have the shape:
{"need_tools": bool, "tool_calls": [{"tool_name": string, "args": object}], "reason_brief": string, "stop_condition": string}
If need_tools is false, tool_calls must be an empty array.`

// Planner builds a system prompt from Memory and State context, invokes the
// Model Client, and parses its reply into a PlannerOutput.
type Planner struct {
	client  *modelclient.Client
	memory  *memory.Memory
	catalog []ToolDescriptor
}

// ToolDescriptor is the minimal per-tool information rendered into the
// tools catalog section of the Planner's system prompt.
type ToolDescriptor struct {
	Name        string
	Description string
}

// New builds a Planner wired to client and memory, describing catalog in
// its system prompt.
func New(client *modelclient.Client, mem *memory.Memory, catalog []ToolDescriptor) *Planner {
	return &Planner{client: client, memory: mem, catalog: catalog}
}

// Plan produces a PlannerOutput for userRequest, given the current snapshot
// of State.
func (p *Planner) Plan(ctx context.Context, userRequest string, snap state.Snapshot) (agentcore.PlannerOutput, error) {
	system := p.buildSystemPrompt(userRequest, snap)

	resp, err := p.client.ChatCompletion(ctx, []modelclient.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: "Generate a plan by responding with valid JSON."},
	}, nil, false)
	if err != nil {
		return agentcore.PlannerOutput{}, err
	}

	text, err := resp.MessageText()
	if err != nil {
		return agentcore.PlannerOutput{}, err
	}

	return parsePlannerOutput(text)
}

func (p *Planner) buildSystemPrompt(userRequest string, snap state.Snapshot) string {
	var b strings.Builder
	b.WriteString(instructionBlock)
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range p.catalog {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	if p.memory != nil {
		b.WriteString("\nMemory:\n")
		b.WriteString(p.memory.ToContext(2000))
	}
	b.WriteString("\n\nState:\n")
	b.WriteString(snap.ToContext())
	b.WriteString("\nRecent history:\n")
	b.WriteString(snap.GetHistorySummary(3))
	fmt.Fprintf(&b, "\nOriginal request: %s\n", userRequest)
	if goal := snap.CurrentGoal(); goal != "" {
		fmt.Fprintf(&b, "Current goal: %s\n", goal)
	}
	return b.String()
}

// parsePlannerOutput extracts the first greedy-balanced {...} block from
// text (the first "{" to the last "}"), parses it as JSON, and validates
// the required fields.
func parsePlannerOutput(text string) (agentcore.PlannerOutput, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return agentcore.PlannerOutput{}, fmt.Errorf("%w: no JSON object found", agentcore.ErrPlannerInvalidOutput)
	}
	block := text[start : end+1]

	var raw struct {
		NeedTools     *bool `json:"need_tools"`
		ToolCalls     []struct {
			ToolName string          `json:"tool_name"`
			Args     json.RawMessage `json:"args"`
		} `json:"tool_calls"`
		ReasonBrief   string `json:"reason_brief"`
		StopCondition string `json:"stop_condition"`
	}
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return agentcore.PlannerOutput{}, fmt.Errorf("%w: %v", agentcore.ErrPlannerInvalidOutput, err)
	}
	if raw.NeedTools == nil {
		return agentcore.PlannerOutput{}, fmt.Errorf("%w: missing need_tools", agentcore.ErrPlannerInvalidOutput)
	}

	out := agentcore.PlannerOutput{
		NeedTools:     *raw.NeedTools,
		ReasonBrief:   truncate(raw.ReasonBrief, maxReasonBriefLen),
		StopCondition: raw.StopCondition,
		RawResponse:   text,
	}

	if out.NeedTools {
		for _, tc := range raw.ToolCalls {
			if tc.ToolName == "" {
				return agentcore.PlannerOutput{}, fmt.Errorf("%w: tool_calls entry missing tool_name", agentcore.ErrPlannerInvalidOutput)
			}
			out.ToolCalls = append(out.ToolCalls, agentcore.ToolCall{ToolName: tc.ToolName, Args: tc.Args})
		}
	}

	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// CheckRepeatedCalls reports whether candidate matches the previous loop
// record's tool_calls elementwise (tool name and raw args). Not a hard
// guarantee; it is advisory input to the Agent Loop's stop decision. When
// there is no prior loop record to compare against, it reports false (not a
// repeat).
func CheckRepeatedCalls(history []agentcore.LoopRecord, candidate []agentcore.ToolCall) bool {
	if len(history) == 0 {
		return false
	}
	prev := history[len(history)-1]
	if prev.PlannerOutput == nil {
		return false
	}
	previous := prev.PlannerOutput.ToolCalls
	if len(previous) != len(candidate) {
		return false
	}
	for i := range candidate {
		if previous[i].ToolName != candidate[i].ToolName {
			return false
		}
		if string(previous[i].Args) != string(candidate[i].Args) {
			return false
		}
	}
	return true
}
