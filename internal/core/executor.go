package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"
)

// Bounds how long Wait keeps reading pipes held open by orphaned children
// after the script itself has exited or been killed.
var pipeWaitDelay = 5 * time.Second

type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExecuteScript runs ./script.sh inside dir. A non-zero exit status is returned
// in the result, not as an error.
func ExecuteScript(ctx context.Context, dir string, timeout time.Duration) (*ExecResult, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, filepath.Join(dir, ScriptName))
	cmd.Args[0] = "./" + ScriptName
	cmd.Dir = dir
	cmd.WaitDelay = pipeWaitDelay
	configureProcess(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	// Children left running in the background are not part of the run.
	terminateGroup(cmd)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		slog.Warn("script exceeded time limit", "dir", dir, "timeout", timeout)
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}

	if errors.Is(err, exec.ErrWaitDelay) {
		slog.Warn("script exited but left output pipes open", "dir", dir)
		err = nil
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
		}
		exitCode = exitErr.ExitCode()
	}

	slog.Info("script finished", "dir", dir, "exit_code", exitCode, "duration", elapsed)

	return &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: elapsed,
	}, nil
}
