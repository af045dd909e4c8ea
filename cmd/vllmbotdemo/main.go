// Command vllmbotdemo wires one vllmbot.Agent against a vLLM-compatible
// endpoint and runs a single request through the Agent Loop. It exists to
// demonstrate the wiring, not as a messenger/CLI front-end.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
	"github.com/Juntar0/vllm-bot/internal/vllmbot"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		workspaceDir string
		baseURL      string
		model        string
		execEnabled  bool
		maxLoops     int
	)

	cmd := &cobra.Command{
		Use:   "vllmbotdemo [request]",
		Short: "Run one request through an Agent Loop backed by a vLLM server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := agentcore.Config{
				VLLM: agentcore.ModelConfig{
					BaseURL: baseURL,
					Model:   model,
				},
				Workspace: agentcore.WorkspaceConfig{Dir: workspaceDir},
				Security:  agentcore.SecurityConfig{ExecEnabled: execEnabled},
				Agent:     agentcore.LoopConfig{MaxLoops: maxLoops},
			}

			agent, err := vllmbot.New(cfg)
			if err != nil {
				return fmt.Errorf("build agent: %w", err)
			}
			defer agent.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			out, err := agent.Run(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceDir, "workspace", "./workspace", "sandbox root the tool catalog may touch")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8000/v1", "vLLM OpenAI-compatible base URL")
	cmd.Flags().StringVar(&model, "model", "default", "model name to request")
	cmd.Flags().BoolVar(&execEnabled, "exec", false, "enable the exec_cmd tool")
	cmd.Flags().IntVar(&maxLoops, "max-loops", 5, "maximum number of plan/act/respond loops")

	return cmd
}
