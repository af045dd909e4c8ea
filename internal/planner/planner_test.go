package planner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/modelclient"
	"github.com/Juntar0/vllm-bot/internal/state"
)

func newMockServer(t *testing.T, assistantContent string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":` + jsonString(assistantContent) + `},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + replacer.Replace(s) + `"`
}

func TestPlanParsesGreedyJSONBlock(t *testing.T) {
	reply := `Sure thing, here's my plan: {"need_tools":true,"tool_calls":[{"tool_name":"read_file","args":{"path":"test.txt"}}],"reason_brief":"reading the file","stop_condition":"done"} — hope that helps.`
	srv := newMockServer(t, reply)
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})
	p := New(client, nil, nil)

	out, err := p.Plan(context.Background(), "show test.txt", state.Snapshot{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !out.NeedTools || len(out.ToolCalls) != 1 || out.ToolCalls[0].ToolName != "read_file" {
		t.Fatalf("unexpected plan: %+v", out)
	}
	if out.ReasonBrief != "reading the file" {
		t.Fatalf("unexpected reason_brief: %q", out.ReasonBrief)
	}
}

func TestPlanMissingNeedToolsFails(t *testing.T) {
	srv := newMockServer(t, `{"tool_calls":[],"reason_brief":"x"}`)
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})
	p := New(client, nil, nil)

	_, err := p.Plan(context.Background(), "x", state.Snapshot{})
	if err == nil {
		t.Fatal("expected PlannerInvalidOutput")
	}
}

func TestPlanTruncatesReasonBrief(t *testing.T) {
	long := strings.Repeat("a", 400)
	srv := newMockServer(t, `{"need_tools":false,"reason_brief":"`+long+`"}`)
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})
	p := New(client, nil, nil)

	out, err := p.Plan(context.Background(), "x", state.Snapshot{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(out.ReasonBrief) != maxReasonBriefLen {
		t.Fatalf("expected truncation to %d chars, got %d", maxReasonBriefLen, len(out.ReasonBrief))
	}
}

func TestCheckRepeatedCallsDetectsRepeat(t *testing.T) {
	prevCalls := []agentcore.ToolCall{{ToolName: "list_dir", Args: []byte(`{"path":"."}`)}}
	history := []agentcore.LoopRecord{{
		LoopID:        1,
		PlannerOutput: &agentcore.PlannerOutput{ToolCalls: prevCalls},
	}}
	if !CheckRepeatedCalls(history, prevCalls) {
		t.Fatal("expected identical calls to be flagged as repeated")
	}
	if CheckRepeatedCalls(history, nil) {
		t.Fatal("expected different calls to not be flagged")
	}
}

func TestCheckRepeatedCallsNoHistory(t *testing.T) {
	if CheckRepeatedCalls(nil, []agentcore.ToolCall{{ToolName: "x"}}) {
		t.Fatal("expected no history to mean not a repeat")
	}
}
