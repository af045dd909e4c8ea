// Package responder implements the Responder: the LLM-backed component
// that converts one loop's tool results into a user-facing reply.
package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/memory"
	"github.com/Juntar0/vllm-bot/internal/modelclient"
	"github.com/Juntar0/vllm-bot/internal/state"
)

const instructionBlock = `You are the response component of an autonomous agent. Write a concise, fact-only reply to the user based strictly on the tool results below. Do not speculate beyond what the results show. Match the language the user wrote in.`

// anchorWords are used only to extract a next_action sentence from the
// model's reply; per the governing design note they do not influence
// IsFinalAnswer.
var anchorWords = []string{"next", "still", "need to", "remaining"}

// Responder builds a prompt from tool results and State/Memory context,
// invokes the Model Client, and classifies the reply.
type Responder struct {
	client *modelclient.Client
	memory *memory.Memory
}

// New builds a Responder wired to client and memory.
func New(client *modelclient.Client, mem *memory.Memory) *Responder {
	return &Responder{client: client, memory: mem}
}

// Respond produces a ResponderOutput for one loop's results.
func (r *Responder) Respond(ctx context.Context, userRequest string, results []agentcore.ToolResult, loopID int, snap state.Snapshot) (agentcore.ResponderOutput, error) {
	system := r.buildSystemPrompt(userRequest, results, snap)

	resp, err := r.client.ChatCompletion(ctx, []modelclient.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: userRequest},
	}, nil, false)
	if err != nil {
		return agentcore.ResponderOutput{}, err
	}

	text, err := resp.MessageText()
	if err != nil {
		return agentcore.ResponderOutput{}, err
	}

	allFailed := len(results) > 0 && allToolResultsFailed(results)
	out := agentcore.ResponderOutput{
		Response:      text,
		Summary:       summarizeResults(results),
		NextAction:    extractNextAction(text),
		IsFinalAnswer: len(snap.RemainingTasks) == 0 && !allFailed,
	}
	return out, nil
}

func (r *Responder) buildSystemPrompt(userRequest string, results []agentcore.ToolResult, snap state.Snapshot) string {
	var b strings.Builder
	b.WriteString(instructionBlock)
	if r.memory != nil {
		b.WriteString("\n\nMemory:\n")
		b.WriteString(r.memory.ToContext(2000))
	}
	b.WriteString("\n\nState:\n")
	b.WriteString(snap.ToContext())
	b.WriteString("\nTool results:\n")
	b.WriteString(renderResults(results))
	fmt.Fprintf(&b, "\nOriginal request: %s\n", userRequest)
	return b.String()
}

func renderResults(results []agentcore.ToolResult) string {
	if len(results) == 0 {
		return "(no tools were run this loop)"
	}
	var b strings.Builder
	for _, r := range results {
		mark := "✓"
		if !r.Success {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s (duration %s)\n", mark, r.ToolName, r.Duration)
		if r.Success {
			fmt.Fprintf(&b, "  %s\n", preview(r.Output, 500))
		} else {
			fmt.Fprintf(&b, "  error: %s\n", preview(r.Error, 500))
		}
	}
	return b.String()
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func allToolResultsFailed(results []agentcore.ToolResult) bool {
	for _, r := range results {
		if r.Success {
			return false
		}
	}
	return true
}

// summarizeResults renders each result as "✓ name succeeded" or
// "✗ name failed: <first 50 chars of error>", joined by "; ".
func summarizeResults(results []agentcore.ToolResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Success {
			parts = append(parts, fmt.Sprintf("✓ %s succeeded", r.ToolName))
		} else {
			parts = append(parts, fmt.Sprintf("✗ %s failed: %s", r.ToolName, preview(r.Error, 50)))
		}
	}
	return strings.Join(parts, "; ")
}

// extractNextAction returns the first sentence of text that contains one of
// the anchor words, or "" if none does.
func extractNextAction(text string) string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n'
	})
	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, anchor := range anchorWords {
			if strings.Contains(lower, anchor) {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
