package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandResult captures one subprocess invocation
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Runner launches child processes with a bounded lifetime. On timeout
// the child is killed and the result reports TimedOut.
type Runner struct {
	// Dir is the working directory for every command; empty means the
	// caller's directory.
	Dir string

	// Timeout bounds each invocation (default: 60 seconds).
	Timeout time.Duration
}

// NewRunner creates a runner rooted at dir
func NewRunner(dir string) *Runner {
	return &Runner{
		Dir:     dir,
		Timeout: 60 * time.Second,
	}
}

// WithTimeout sets the per-command timeout
func (r *Runner) WithTimeout(timeout time.Duration) *Runner {
	r.Timeout = timeout
	return r
}

// Run executes name with args and waits for completion. A non-zero
// exit is not an error; callers branch on ExitCode. The returned
// error covers spawn failures and timeouts only.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*CommandResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if execCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, fmt.Errorf("command %s timed out after %s", name, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return result, nil
}

// CombinedOutput returns stdout and stderr joined for log lines
func (cr *CommandResult) CombinedOutput() string {
	out := strings.TrimSpace(cr.Stdout)
	errOut := strings.TrimSpace(cr.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}
