package facade

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/modelclient"
	"github.com/Juntar0/vllm-bot/internal/toolrunner"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}}}`)
}
func (echoTool) Execute(ctx context.Context, params json.RawMessage) (*agentcore.ToolResult, error) {
	var in struct {
		Text string `json:"text"`
	}
	json.Unmarshal(params, &in)
	return &agentcore.ToolResult{Success: true, Output: in.Text}, nil
}

type scriptedServer struct {
	mu      sync.Mutex
	bodies  []string
	calls   int
}

func newScriptedServer(t *testing.T, bodies ...string) *httptest.Server {
	t.Helper()
	s := &scriptedServer{bodies: bodies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		idx := s.calls
		if idx >= len(s.bodies) {
			idx = len(s.bodies) - 1
		}
		body := s.bodies[idx]
		s.calls++
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func finalAnswerBody(content string) string {
	return `{"id":"1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"` + content + `"},"finish_reason":"stop"}]}`
}

func nativeToolCallBody(name, args string) string {
	return `{"id":"1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"` + name + `","arguments":` + args + `}}]},"finish_reason":"tool_calls"}]}`
}

func TestHandleFinalAnswerNoToolCalls(t *testing.T) {
	srv := newScriptedServer(t, finalAnswerBody("Hello there"))
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})
	tr := toolrunner.New([]agentcore.Tool{echoTool{}}, nil)
	f := New(client, tr, "system prompt", nil)

	out, err := f.Handle(context.Background(), "user1", "hi")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out != "Hello there" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestHandleNativeToolCallThenFinalAnswer(t *testing.T) {
	srv := newScriptedServer(t,
		nativeToolCallBody("echo", argsJSONString(`{"text":"hi"}`)),
		finalAnswerBody("done"),
	)
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})
	tr := toolrunner.New([]agentcore.Tool{echoTool{}}, nil)
	f := New(client, tr, "system prompt", nil)

	out, err := f.Handle(context.Background(), "user1", "please echo hi")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out != "done" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestHandleFreeTextToolCallScannedOnlyWithoutNative(t *testing.T) {
	reply := `Sure. TOOL_CALL: {"name": "echo", "args": {"text": "nested \"quote\" and {brace}"}} done.`
	srv := newScriptedServer(t,
		finalAnswerBody(jsonEscape(reply)),
		finalAnswerBody("all set"),
	)
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})
	tr := toolrunner.New([]agentcore.Tool{echoTool{}}, nil)
	f := New(client, tr, "system prompt", nil)

	out, err := f.Handle(context.Background(), "user1", "echo something tricky")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out != "all set" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestHandleMaxIterationsTerminates(t *testing.T) {
	reply := `TOOL_CALL: {"name": "echo", "args": {"text": "loop"}}`
	srv := newScriptedServer(t, finalAnswerBody(jsonEscape(reply)))
	client := modelclient.New(modelclient.Config{BaseURL: srv.URL, Model: "m"})
	tr := toolrunner.New([]agentcore.Tool{echoTool{}}, nil)
	f := New(client, tr, "system prompt", nil)
	f.maxIterations = 2

	out, err := f.Handle(context.Background(), "user1", "loop forever")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out == "" {
		t.Fatal("expected a max-iterations terminal message")
	}
}

func TestExtractFreeTextCallsDropsUnparsableCandidate(t *testing.T) {
	text := `TOOL_CALL: {not json} then TOOL_CALL: {"name": "echo", "args": {}}`
	calls := extractFreeTextCalls(text)
	if len(calls) != 1 || calls[0].ToolName != "echo" {
		t.Fatalf("expected exactly one valid call extracted, got %+v", calls)
	}
}

func TestExtractFreeTextCallsHandlesNestedBraces(t *testing.T) {
	text := `TOOL_CALL: {"name": "echo", "args": {"nested": {"a": 1}}}`
	calls := extractFreeTextCalls(text)
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	var args map[string]any
	json.Unmarshal(calls[0].Args, &args)
	if _, ok := args["nested"]; !ok {
		t.Fatalf("expected nested object preserved in args: %s", calls[0].Args)
	}
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

// argsJSONString renders raw (an already-valid JSON object as Go source
// text) as the JSON-encoded string OpenAI's wire format expects for a
// function call's "arguments" field.
func argsJSONString(raw string) string {
	b, _ := json.Marshal(raw)
	return string(b)
}
