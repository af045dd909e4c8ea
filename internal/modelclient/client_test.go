package modelclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatCompletionMessageText(t *testing.T) {
	body := `{
		"id": "1", "object": "chat.completion", "created": 1, "model": "m",
		"choices": [{"index":0, "message": {"role":"assistant","content":"hello world"}, "finish_reason":"stop"}]
	}`
	srv := newTestServer(t, body)

	client := New(Config{BaseURL: srv.URL, Model: "m"})
	resp, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, false)
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	text, err := resp.MessageText()
	if err != nil {
		t.Fatalf("MessageText: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected hello world, got %q", text)
	}
}

func TestChatCompletionNativeToolCalls(t *testing.T) {
	argsJSON, _ := json.Marshal(map[string]any{"path": "test.txt"})
	body := `{
		"id": "1", "object": "chat.completion", "created": 1, "model": "m",
		"choices": [{"index":0, "message": {"role":"assistant","content":"", "tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"read_file","arguments":` + string(mustJSON(string(argsJSON))) + `}}
		]}, "finish_reason":"tool_calls"}]
	}`
	srv := newTestServer(t, body)

	client := New(Config{BaseURL: srv.URL, Model: "m"})
	resp, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "read it"}}, nil, false)
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	calls := resp.NativeToolCalls()
	if len(calls) != 1 || calls[0].Name != "read_file" {
		t.Fatalf("expected one read_file call, got %+v", calls)
	}
}

func mustJSON(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}

func TestChatCompletionTransportError(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:0", Model: "m"})
	_, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, false)
	if err == nil {
		t.Fatal("expected transport error")
	}
}
