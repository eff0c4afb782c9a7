package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

const (
	defaultPowerShellPath = "powershell"

	// waitDelay bounds how long Run waits for the output pipes to drain once
	// the process has been killed; grandchildren may keep them open.
	waitDelay = 2 * time.Second
)

// ExecRunner runs queries as a local child process.
//
// ExecRunner is stateless; a single value may serve several schedulers.
type ExecRunner struct {
	// Path is the executable to launch. Resolved through PATH when it
	// contains no path separator.
	Path string

	// Args builds the argument list for q. It must not include Path.
	Args func(q Query) []string
}

// NewPowerShellRunner returns an [ExecRunner] that passes the query script
// to powershell as a single -Command argument, avoiding a shell round trip.
func NewPowerShellRunner() *ExecRunner {
	return &ExecRunner{
		Path: defaultPowerShellPath,
		Args: PowerShellArgs,
	}
}

// PowerShellArgs is the argument list used by [NewPowerShellRunner].
func PowerShellArgs(q Query) []string {
	return []string{"-NoProfile", "-NonInteractive", "-Command", q.Script()}
}

// Run starts the process and blocks until it exits.
//
// Cancelling ctx kills the process. In that case the partial output is
// returned together with the context error.
func (r *ExecRunner) Run(ctx context.Context, q Query, onStderr func(chunk []byte)) (Result, error) {
	var args []string
	if r.Args != nil {
		args = r.Args(q)
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = chunkWriter(onStderr)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start %s: %w", r.Path, err)
	}

	err := cmd.Wait()
	result := Result{
		Stdout:   stdout.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("query cancelled: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return result, fmt.Errorf("failed to wait for %s: %w", r.Path, err)
	}

	return result, nil
}

// chunkWriter hands every write to fn as its own chunk. os/exec copies the
// stderr pipe from a single goroutine, so fn is never called concurrently
// with itself.
type chunkWriter func(chunk []byte)

func (w chunkWriter) Write(p []byte) (int, error) {
	if w != nil && len(p) > 0 {
		// p is reused by the copy loop after Write returns
		w(append([]byte(nil), p...))
	}
	return len(p), nil
}
