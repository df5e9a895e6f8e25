package trim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Output   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args []string, onLine func(string)) (commandResult, error)
}

// execRunner executes commands via os/exec with stdout and stderr merged.
type execRunner struct {
	maxLine int
}

// Run starts the command, hands each output line to onLine as it arrives and
// blocks until the process exits. A non-zero exit yields an *exec.ExitError.
func (r *execRunner) Run(ctx context.Context, name string, args []string, onLine func(string)) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return commandResult{ExitCode: -1}, fmt.Errorf("attach output pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return commandResult{ExitCode: -1}, err
	}

	var captured strings.Builder
	stream := NewLineStream(stdout, r.maxLine)
	for line := range stream.Lines() {
		captured.WriteString(line)
		captured.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := stream.Err()
	if scanErr != nil {
		// keep the child from blocking on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	result := commandResult{Output: captured.String()}
	if waitErr != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, waitErr
	}
	if scanErr != nil {
		return result, fmt.Errorf("read command output: %w", scanErr)
	}
	return result, nil
}
