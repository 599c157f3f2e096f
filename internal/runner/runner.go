// Package runner abstracts execution of the external tools this workflow
// drives (the photogrammetry application, exiftool, py3dtiles, sbatch).
// Commands are the unit of work; nothing here interprets their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// Exit code reported when the binary itself could not be started.
const exitNotFound = 127

// Runner executes external commands.
type Runner interface {
	// Run executes the command and captures stdout and stderr.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
	// RunStreaming executes the command with output streamed to the given
	// writers. Used for long-lived invocations where progress matters.
	RunStreaming(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
	// LookPath reports where the named binary resolves on PATH.
	LookPath(name string) (string, error)
}

// ExecRunner executes commands on the local host via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), err
	}

	exitCode := 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = exitNotFound
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, err
}

func (ExecRunner) RunStreaming(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}
	return cmd.Run()
}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
