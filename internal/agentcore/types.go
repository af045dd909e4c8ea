// Package agentcore holds the shared data model for the agent control
// plane: the types that flow between the Planner, the Tool Runner, the
// Responder, and the Agent Loop.
package agentcore

import (
	"encoding/json"
	"time"
)

// ToolCall names a tool and the arguments to invoke it with. Produced by the
// Planner, consumed by the Tool Runner.
type ToolCall struct {
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"args"`
}

// ToolResult is the uniform result of one tool invocation. Exactly one of
// Output or Error is meaningful, selected by Success.
type ToolResult struct {
	ToolName string        `json:"tool_name"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// PlannerOutput is the Planner's decision for one loop iteration.
//
// Invariant: NeedTools == false implies len(ToolCalls) == 0.
type PlannerOutput struct {
	NeedTools     bool       `json:"need_tools"`
	ToolCalls     []ToolCall `json:"tool_calls,omitempty"`
	ReasonBrief   string     `json:"reason_brief"`
	StopCondition string     `json:"stop_condition,omitempty"`
	RawResponse   string     `json:"-"`
}

// ResponderOutput is the Responder's classification of one loop's results.
type ResponderOutput struct {
	Response      string `json:"response"`
	Summary       string `json:"summary,omitempty"`
	NextAction    string `json:"next_action,omitempty"`
	IsFinalAnswer bool   `json:"is_final_answer"`
}

// LoopRecord captures the Planner decision, tool results, and Responder
// output produced during one loop iteration. At most one LoopRecord exists
// per LoopID in State.History.
type LoopRecord struct {
	LoopID          int              `json:"loop_id"`
	Timestamp       time.Time        `json:"timestamp"`
	PlannerOutput   *PlannerOutput   `json:"planner_output,omitempty"`
	ToolResults     []ToolResult     `json:"tool_results,omitempty"`
	ResponderOutput *ResponderOutput `json:"responder_output,omitempty"`
}

// ExecutionSummary reports on one completed Agent.Run call.
type ExecutionSummary struct {
	TotalLoops      int     `json:"total_loops"`
	MaxLoops        int     `json:"max_loops"`
	FactsDiscovered int     `json:"facts_discovered"`
	RemainingTasks  int     `json:"remaining_tasks"`
	Completed       bool    `json:"completed"`
	ToolCallsTotal  int     `json:"tool_calls_total"`
	ToolSuccessRate float64 `json:"tool_success_rate"`
}
