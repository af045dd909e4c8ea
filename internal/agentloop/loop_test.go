package agentloop

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/modelclient"
	"github.com/Juntar0/vllm-bot/internal/planner"
	"github.com/Juntar0/vllm-bot/internal/responder"
	"github.com/Juntar0/vllm-bot/internal/state"
	"github.com/Juntar0/vllm-bot/internal/toolrunner"
)

// scriptedServer replies with successive assistant contents in order,
// repeating the last one once exhausted. The Planner's "Generate a plan..."
// user message and the Responder's echoed userRequest message look
// different on the wire, so routing by call order (not by content) is
// sufficient for these single-goroutine tests.
type scriptedServer struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func newScriptedServer(t *testing.T, replies ...string) *httptest.Server {
	t.Helper()
	s := &scriptedServer{replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		s.mu.Lock()
		idx := s.calls
		if idx >= len(s.replies) {
			idx = len(s.replies) - 1
		}
		content := s.replies[idx]
		s.calls++
		s.mu.Unlock()

		body, _ := json.Marshal(map[string]any{
			"id": "1", "object": "chat.completion", "created": 1, "model": "m",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func buildLoop(t *testing.T, maxLoops int, replies ...string) *Loop {
	t.Helper()
	srv := newScriptedServer(t, replies...)
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})

	p := planner.New(client, nil, nil)
	r := responder.New(client, nil)
	tr := toolrunner.New(nil, nil)
	st := state.New(maxLoops)

	return New(Config{
		Planner:    p,
		ToolRunner: tr,
		Responder:  r,
		State:      st,
	})
}

func TestRunSingleShotCompletion(t *testing.T) {
	l := buildLoop(t, 5,
		`{"need_tools":false,"tool_calls":[],"reason_brief":"no tools needed","stop_condition":"done"}`,
		`All done, here is your answer.`,
	)

	out, err := l.Run(context.Background(), "what is 2+2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "All done, here is your answer." {
		t.Fatalf("unexpected output: %q", out)
	}

	summary := l.ExecutionSummary()
	if summary.TotalLoops != 1 {
		t.Fatalf("expected 1 loop, got %d", summary.TotalLoops)
	}
	if !summary.Completed {
		t.Fatal("expected Completed=true")
	}
}

func TestRunReachesMaxLoops(t *testing.T) {
	// need_tools is true but the named tool is unregistered, so every loop's
	// tool call fails and the Responder never reports a final answer.
	l := buildLoop(t, 2,
		`{"need_tools":true,"tool_calls":[{"tool_name":"missing_tool","args":{}}],"reason_brief":"still working","stop_condition":"none"}`,
		`still need to do more work`,
	)
	l.loopWait = 0

	out, err := l.Run(context.Background(), "an open-ended task")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "maximum loop limit (2)") {
		t.Fatalf("expected max-loops terminal message, got %q", out)
	}

	summary := l.ExecutionSummary()
	if summary.TotalLoops != 2 {
		t.Fatalf("expected 2 loops, got %d", summary.TotalLoops)
	}
	if summary.MaxLoops != 2 {
		t.Fatalf("expected max loops 2, got %d", summary.MaxLoops)
	}
}

func TestRunAbortsOnPlannerError(t *testing.T) {
	l := buildLoop(t, 5, `not valid json at all`)

	_, err := l.Run(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected an error from an invalid planner decision")
	}
	if !strings.Contains(err.Error(), "agent loop failed at loop 1") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunUsesToolsAndRespondsFinal(t *testing.T) {
	srv := newScriptedServer(t,
		`{"need_tools":true,"tool_calls":[{"tool_name":"noop","args":{}}],"reason_brief":"run noop","stop_condition":"done"}`,
		`Finished using the tool.`,
	)
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})

	p := planner.New(client, nil, nil)
	r := responder.New(client, nil)
	tr := toolrunner.New([]agentcore.Tool{noopTool{}}, nil)
	st := state.New(5)

	l := New(Config{Planner: p, ToolRunner: tr, Responder: r, State: st})

	out, err := l.Run(context.Background(), "use the tool")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "Finished using the tool." {
		t.Fatalf("unexpected output: %q", out)
	}

	summary := l.ExecutionSummary()
	if summary.ToolCallsTotal != 1 || summary.ToolSuccessRate != 1.0 {
		t.Fatalf("unexpected tool accounting: %+v", summary)
	}
}

// noopTool is a trivial agentcore.Tool stub used only to exercise the
// Planner -> ToolRunner -> Responder wiring inside the loop.
type noopTool struct{}

func (noopTool) Name() string        { return "noop" }
func (noopTool) Description() string { return "does nothing" }
func (noopTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (noopTool) Execute(ctx context.Context, params json.RawMessage) (*agentcore.ToolResult, error) {
	return &agentcore.ToolResult{Success: true, Output: "ok"}, nil
}
