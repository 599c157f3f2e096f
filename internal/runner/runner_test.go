package runner

import (
	"bytes"
	"context"
	"runtime"
	"testing"
)

func TestExecRunner_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	r := ExecRunner{}
	stdout, stderr, code, err := r.Run(context.Background(), "sh", "-c", "echo hello; echo warn >&2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
	if string(stdout) != "hello\n" {
		t.Errorf("unexpected stdout: %q", stdout)
	}
	if string(stderr) != "warn\n" {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestExecRunner_Run_ExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	r := ExecRunner{}
	_, _, code, err := r.Run(context.Background(), "sh", "-c", "exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if code != 3 {
		t.Errorf("expected exit 3, got %d", code)
	}
}

func TestExecRunner_Run_BinaryNotFound(t *testing.T) {
	r := ExecRunner{}
	_, _, code, err := r.Run(context.Background(), "pitctl-no-such-binary")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if code != exitNotFound {
		t.Errorf("expected exit %d, got %d", exitNotFound, code)
	}
}

func TestExecRunner_RunStreaming(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	r := ExecRunner{}
	var stdout bytes.Buffer
	err := r.RunStreaming(context.Background(), "sh", []string{"-c", "echo streamed"}, &stdout, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout.String() != "streamed\n" {
		t.Errorf("unexpected stdout: %q", stdout.String())
	}
}

func TestExecRunner_LookPath(t *testing.T) {
	r := ExecRunner{}
	if _, err := r.LookPath("pitctl-no-such-binary"); err == nil {
		t.Error("expected error for missing binary")
	}
}
