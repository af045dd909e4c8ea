// Package exec implements the exec_cmd tool: a synchronous, timeout-bounded
// shell invocation under the command allowlist and output limits carried by
// sandbox.Constraints.
package exec

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// Result is the raw outcome of one command run, before it is folded into an
// agentcore.ToolResult by ExecCmdTool. StartFailed distinguishes "the shell
// ran and exited with this code" (ExitCode meaningful, still a completion)
// from "the shell could not be started at all" (a genuine tool failure).
type Result struct {
	Output      string
	ExitCode    int
	Err         error
	Duration    time.Duration
	TimedOut    bool
	StartFailed bool
}

// Run executes command under cwd with the effective timeout already applied
// by the caller, combining stdout and stderr per the exec_cmd contract:
// "stdout + \n[stderr]\n + stderr" when stderr is non-empty.
func Run(ctx context.Context, command, cwd string, timeout time.Duration) Result {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{TimedOut: true, Duration: elapsed, ExitCode: 124}
	}

	combined := stdout.String()
	if stderr.Len() > 0 {
		combined = combined + "\n[stderr]\n" + stderr.String()
	}

	_, isExitError := err.(*exec.ExitError)
	return Result{
		Output:      combined,
		ExitCode:    exitCode(err),
		Err:         err,
		Duration:    elapsed,
		StartFailed: err != nil && !isExitError,
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
