// Package modelclient talks to a remote, OpenAI-compatible chat-completions
// endpoint. It is the only component that knows about the wire protocol in
// SPEC_FULL.md §6; the remote endpoint itself is out of scope.
package modelclient

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
)

// Config configures a Client. BaseURL and Model are required; APIKey
// defaults to "dummy" when empty, matching a vLLM server with auth disabled.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
}

// Client issues chat-completion requests to a remote OpenAI-compatible
// endpoint and extracts text / native tool calls from the response.
type Client struct {
	inner  *openai.Client
	model  string
	temp   float32
	tokens int
}

// New builds a Client from cfg. The trailing slash on BaseURL, if any, is
// stripped before the SDK appends "/chat/completions".
func New(cfg Config) *Client {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy"
	}
	oaiCfg := openai.DefaultConfig(apiKey)
	oaiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.7
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	return &Client{
		inner:  openai.NewClientWithConfig(oaiCfg),
		model:  cfg.Model,
		temp:   temp,
		tokens: maxTokens,
	}
}

// Message is one entry in a chat-completion request's message list.
type Message struct {
	Role    string // "system", "user", "assistant", "tool"
	Content string
}

// ToolSpec is one entry in the optional tools catalog, in OpenAI
// function-schema form.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response is the parsed shape of one chat-completion reply.
type Response struct {
	raw openai.ChatCompletionResponse
}

// ChatCompletion sends messages (and an optional tools catalog) to the
// remote endpoint and returns the parsed response. stream requests
// server-sent chunks from the remote end, but the chunks are fully drained
// before returning; streaming partial tokens out to the user is an
// explicit Non-goal.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, tools []ToolSpec, stream bool) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.temp,
		MaxTokens:   c.tokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	if !stream {
		resp, err := c.inner.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, classifyError(err)
		}
		return &Response{raw: resp}, nil
	}

	req.Stream = true
	streamResp, err := c.inner.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer streamResp.Close()

	var (
		content    strings.Builder
		toolCalls  []openai.ToolCall
		finishSeen string
	)
	for {
		chunk, err := streamResp.Recv()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			break
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		content.WriteString(delta.Content)
		toolCalls = mergeToolCallDeltas(toolCalls, delta.ToolCalls)
		if chunk.Choices[0].FinishReason != "" {
			finishSeen = string(chunk.Choices[0].FinishReason)
		}
	}

	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   content.String(),
				ToolCalls: toolCalls,
			},
			FinishReason: openai.FinishReason(finishSeen),
		}},
	}
	return &Response{raw: resp}, nil
}

// MessageText returns the first choice's message content.
func (r *Response) MessageText() (string, error) {
	if len(r.raw.Choices) == 0 {
		return "", agentcore.ErrModelMalformed
	}
	return r.raw.Choices[0].Message.Content, nil
}

// NativeToolCall mirrors the subset of openai.ToolCall the core needs,
// decoupling callers from the SDK's wire type.
type NativeToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// NativeToolCalls returns the message's tool_calls array, possibly empty.
func (r *Response) NativeToolCalls() []NativeToolCall {
	if len(r.raw.Choices) == 0 {
		return nil
	}
	raw := r.raw.Choices[0].Message.ToolCalls
	out := make([]NativeToolCall, 0, len(raw))
	for _, tc := range raw {
		out = append(out, NativeToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func toOpenAITools(tools []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func mergeToolCallDeltas(acc []openai.ToolCall, deltas []openai.ToolCall) []openai.ToolCall {
	for _, d := range deltas {
		idx := d.Index
		if idx == nil {
			acc = append(acc, d)
			continue
		}
		for len(acc) <= *idx {
			acc = append(acc, openai.ToolCall{})
		}
		if d.ID != "" {
			acc[*idx].ID = d.ID
		}
		if d.Type != "" {
			acc[*idx].Type = d.Type
		}
		acc[*idx].Function.Name += d.Function.Name
		acc[*idx].Function.Arguments += d.Function.Arguments
	}
	return acc
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return errors.Join(agentcore.ErrModelError, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errors.Join(agentcore.ErrModelUnreachable, err)
	}
	return errors.Join(agentcore.ErrModelUnreachable, err)
}

// Timeout returns a context bounded by d, for callers that want a
// transport-level timeout around a single ChatCompletion call.
func Timeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
