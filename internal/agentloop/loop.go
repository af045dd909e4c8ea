// Package agentloop implements the Agent Loop: the bounded sequential
// Planner -> ToolRunner -> Responder iteration driver.
package agentloop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/observability"
	"github.com/Juntar0/vllm-bot/internal/planner"
	"github.com/Juntar0/vllm-bot/internal/responder"
	"github.com/Juntar0/vllm-bot/internal/state"
	"github.com/Juntar0/vllm-bot/internal/toolrunner"
)

// AuditSink records loop-level events outside of individual tool calls.
type AuditSink interface {
	LogPlannerDecision(loopID int, out agentcore.PlannerOutput)
	LogResponderResponse(loopID int, out agentcore.ResponderOutput)
	LogError(loopID int, err error)
}

// Loop wires the Planner, Tool Runner, and Responder around a shared State.
type Loop struct {
	planner     *planner.Planner
	toolRunner  *toolrunner.Runner
	responder   *responder.Responder
	state       *state.State
	audit       AuditSink
	loopWait    time.Duration
	logger      *observability.Logger
	metrics     *observability.Metrics
	tracer      *observability.Tracer
}

// Config bundles a Loop's dependencies.
type Config struct {
	Planner    *planner.Planner
	ToolRunner *toolrunner.Runner
	Responder  *responder.Responder
	State      *state.State
	Audit      AuditSink
	LoopWait   time.Duration
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer
}

// New builds a Loop from cfg.
func New(cfg Config) *Loop {
	return &Loop{
		planner:    cfg.Planner,
		toolRunner: cfg.ToolRunner,
		responder:  cfg.Responder,
		state:      cfg.State,
		audit:      cfg.Audit,
		loopWait:   cfg.LoopWait,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
	}
}

// Run resets State for userRequest and iterates the Planner/ToolRunner/
// Responder cycle until a stop condition holds or max_loops is reached.
func (l *Loop) Run(ctx context.Context, userRequest string) (string, error) {
	l.state.Reset(userRequest)

	ctxSpan := ctx
	var span trace.Span
	if l.tracer != nil {
		ctxSpan, span = l.tracer.Start(ctx, "agent_loop.run")
		defer span.End()
	}

	maxLoops := l.state.Snapshot().MaxLoops
	if maxLoops <= 0 {
		maxLoops = 5
	}

	for loopID := 1; loopID <= maxLoops; loopID++ {
		l.state.StartLoop(loopID)
		if l.metrics != nil {
			l.metrics.LoopIteration("start")
		}

		snap := l.state.Snapshot()

		plan, err := l.planner.Plan(ctxSpan, userRequest, snap)
		if err != nil {
			return l.abort(loopID, span, err)
		}
		l.state.AddPlannerOutput(loopID, plan)
		if l.audit != nil {
			l.audit.LogPlannerDecision(loopID, plan)
		}

		var results []agentcore.ToolResult
		if plan.NeedTools && len(plan.ToolCalls) > 0 {
			results = l.toolRunner.ExecuteCalls(ctxSpan, plan.ToolCalls, loopID)
			l.state.AddToolResults(loopID, results)
			if l.metrics != nil {
				for _, r := range results {
					status := "success"
					if !r.Success {
						status = "failure"
					}
					l.metrics.RecordToolCall(r.ToolName, status, r.Duration.Seconds())
				}
			}
		}

		snap = l.state.Snapshot()
		out, err := l.responder.Respond(ctxSpan, userRequest, results, loopID, snap)
		if err != nil {
			return l.abort(loopID, span, err)
		}
		l.state.AddResponderOutput(loopID, out)
		if l.audit != nil {
			l.audit.LogResponderResponse(loopID, out)
		}

		snap = l.state.Snapshot()
		if !plan.NeedTools || out.IsFinalAnswer || (len(snap.RemainingTasks) == 0 && len(snap.Facts) > 0) {
			if l.metrics != nil {
				l.metrics.RecordRun("completed")
			}
			return out.Response, nil
		}

		if loopID < maxLoops {
			select {
			case <-ctxSpan.Done():
				return l.abort(loopID, span, ctxSpan.Err())
			case <-time.After(l.loopWait):
			}
		}
	}

	if l.metrics != nil {
		l.metrics.RecordRun("max_loops")
	}
	return l.terminalSummary(maxLoops), nil
}

func (l *Loop) abort(loopID int, span trace.Span, err error) (string, error) {
	if l.audit != nil {
		l.audit.LogError(loopID, err)
	}
	if l.logger != nil {
		l.logger.Error(context.Background(), "agent loop aborted", "loop_id", loopID, "error", err)
	}
	if l.metrics != nil {
		l.metrics.RecordRun("error")
	}
	if l.tracer != nil && span != nil {
		l.tracer.RecordError(span, err)
	}
	return "", fmt.Errorf("agent loop failed at loop %d: %w", loopID, err)
}

func (l *Loop) terminalSummary(maxLoops int) string {
	snap := l.state.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "Reached the maximum loop limit (%d) without a final answer.\n", maxLoops)
	if len(snap.Facts) > 0 {
		fmt.Fprintf(&b, "Discovered facts: %s\n", strings.Join(snap.Facts, "; "))
	}
	if len(snap.RemainingTasks) > 0 {
		fmt.Fprintf(&b, "Remaining tasks: %s\n", strings.Join(snap.RemainingTasks, "; "))
	}
	return b.String()
}

// ExecutionSummary reports on the completed or in-progress request.
func (l *Loop) ExecutionSummary() agentcore.ExecutionSummary {
	snap := l.state.Snapshot()

	toolCallsTotal := 0
	toolSuccesses := 0
	for _, rec := range snap.History {
		for _, tr := range rec.ToolResults {
			toolCallsTotal++
			if tr.Success {
				toolSuccesses++
			}
		}
	}
	successRate := 0.0
	if toolCallsTotal > 0 {
		successRate = float64(toolSuccesses) / float64(toolCallsTotal)
	}

	return agentcore.ExecutionSummary{
		TotalLoops:      snap.LoopCount,
		MaxLoops:        snap.MaxLoops,
		FactsDiscovered: len(snap.Facts),
		RemainingTasks:  len(snap.RemainingTasks),
		Completed:       len(snap.RemainingTasks) == 0,
		ToolCallsTotal:  toolCallsTotal,
		ToolSuccessRate: successRate,
	}
}
