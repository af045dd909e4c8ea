// Package vllmbot wires one Agent: the Memory, State, Constraints, tool
// catalog, Tool Runner, Planner, Responder, Agent Loop, and optionally one
// Audit Log and one Conversational Façade, built from an in-process
// agentcore.Config value.
package vllmbot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/agentloop"
	"github.com/Juntar0/vllm-bot/internal/audit"
	"github.com/Juntar0/vllm-bot/internal/facade"
	"github.com/Juntar0/vllm-bot/internal/memory"
	"github.com/Juntar0/vllm-bot/internal/modelclient"
	"github.com/Juntar0/vllm-bot/internal/observability"
	"github.com/Juntar0/vllm-bot/internal/planner"
	"github.com/Juntar0/vllm-bot/internal/responder"
	"github.com/Juntar0/vllm-bot/internal/sandbox"
	"github.com/Juntar0/vllm-bot/internal/state"
	"github.com/Juntar0/vllm-bot/internal/toolrunner"
	toolexec "github.com/Juntar0/vllm-bot/internal/tools/exec"
	"github.com/Juntar0/vllm-bot/internal/tools/files"
)

// Agent owns every component of one running instance: one Memory, one
// State, one Constraints, one Tool Runner, one Planner, one Responder, one
// Agent Loop, and optionally one Audit Log and one Conversational Façade.
type Agent struct {
	Config      agentcore.Config
	Memory      *memory.Memory
	State       *state.State
	Constraints *sandbox.Constraints
	ToolRunner  *toolrunner.Runner
	Planner     *planner.Planner
	Responder   *responder.Responder
	Loop        *agentloop.Loop
	Audit       *audit.Log
	Facade      *facade.Facade

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	shutdownTracer func(context.Context) error
}

// New builds an Agent from cfg. cfg is sanitized in place before use.
func New(cfg agentcore.Config) (*Agent, error) {
	cfg.Sanitize()

	mem := memory.New(cfg.Memory.Path)

	constraints, err := sandbox.New(
		cfg.Workspace.Dir,
		cfg.Security.AllowedCommands,
		cfg.Security.TimeoutSec,
		cfg.Security.MaxOutputSize,
		cfg.Security.MaxStderrSize,
		cfg.Security.RejectShellMeta,
	)
	if err != nil {
		return nil, fmt.Errorf("vllmbot: build constraints: %w", err)
	}

	auditLog, err := audit.New(audit.Config{Enabled: cfg.Audit.Enabled, LogPath: cfg.Audit.LogPath})
	if err != nil {
		return nil, fmt.Errorf("vllmbot: build audit log: %w", err)
	}

	tools := buildTools(constraints, cfg.Security.ExecEnabled)
	toolRunner := toolrunner.New(tools, auditLog)

	client := modelclient.New(modelclient.Config{
		BaseURL:     cfg.VLLM.BaseURL,
		Model:       cfg.VLLM.Model,
		APIKey:      cfg.VLLM.APIKey,
		Temperature: cfg.VLLM.Temperature,
		MaxTokens:   cfg.VLLM.MaxTokens,
	})

	catalog := toolDescriptors(tools)
	p := planner.New(client, mem, catalog)
	r := responder.New(client, mem)

	st := state.New(cfg.Agent.MaxLoops)

	logLevel := "info"
	if cfg.Debug.Enabled && cfg.Debug.Level != "" {
		logLevel = string(cfg.Debug.Level)
	}
	logger := observability.NewLogger(observability.LogConfig{Level: logLevel, Format: "json"})
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{ServiceName: "vllm-bot"})

	loop := agentloop.New(agentloop.Config{
		Planner:    p,
		ToolRunner: toolRunner,
		Responder:  r,
		State:      st,
		Audit:      auditLog,
		LoopWait:   cfg.Agent.LoopWait,
		Logger:     logger,
		Metrics:    metrics,
		Tracer:     tracer,
	})

	systemPrompt := facade.BuildSystemPrompt(cfg.SystemPrompt)
	fac := facade.New(client, toolRunner, systemPrompt, toolSpecs(tools))

	return &Agent{
		Config:         cfg,
		Memory:         mem,
		State:          st,
		Constraints:    constraints,
		ToolRunner:     toolRunner,
		Planner:        p,
		Responder:      r,
		Loop:           loop,
		Audit:          auditLog,
		Facade:         fac,
		Logger:         logger,
		Metrics:        metrics,
		Tracer:         tracer,
		shutdownTracer: shutdownTracer,
	}, nil
}

// Run drives the Agent Loop for one bounded request.
func (a *Agent) Run(ctx context.Context, userRequest string) (string, error) {
	return a.Loop.Run(ctx, userRequest)
}

// Chat drives the Conversational Façade for one linear-chat turn under
// userKey.
func (a *Agent) Chat(ctx context.Context, userKey, message string) (string, error) {
	return a.Facade.Handle(ctx, userKey, message)
}

// Close releases the Agent's background resources (tracer exporter, audit
// log file handle).
func (a *Agent) Close() error {
	if a.shutdownTracer != nil {
		_ = a.shutdownTracer(context.Background())
	}
	if a.Audit != nil {
		return a.Audit.Close()
	}
	return nil
}

func buildTools(constraints *sandbox.Constraints, execEnabled bool) []agentcore.Tool {
	tools := []agentcore.Tool{
		files.NewListDirTool(constraints),
		files.NewReadFileTool(constraints),
		files.NewWriteFileTool(constraints),
		files.NewEditFileTool(constraints),
		files.NewGrepTool(constraints),
	}
	if execEnabled {
		tools = append(tools, toolexec.NewExecCmdTool(constraints))
	}
	return tools
}

func toolDescriptors(tools []agentcore.Tool) []planner.ToolDescriptor {
	out := make([]planner.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, planner.ToolDescriptor{Name: t.Name(), Description: t.Description()})
	}
	return out
}

func toolSpecs(tools []agentcore.Tool) []modelclient.ToolSpec {
	out := make([]modelclient.ToolSpec, 0, len(tools))
	for _, t := range tools {
		var params map[string]any
		if err := json.Unmarshal(t.Schema(), &params); err != nil {
			continue
		}
		out = append(out, modelclient.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: params})
	}
	return out
}
