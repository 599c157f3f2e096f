// Package batch generates the cluster submission script used to run the
// containerized photogrammetry application on a SLURM scheduler. The
// scheduler's semantics are not reimplemented here; this package only
// renders the directives and hands the script to sbatch.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/snowpitlab/pitctl/internal/runner"
)

// DefaultContainerRuntime is used when no runtime is configured.
const DefaultContainerRuntime = "singularity"

var (
	// HH:MM:SS or D-HH:MM:SS, the forms accepted by the scheduler.
	timeLimitPattern = regexp.MustCompile(`^(\d+-)?\d{1,2}:\d{2}:\d{2}$`)
	// 64G, 512M, 2000 (MB implied).
	memoryPattern = regexp.MustCompile(`^\d+[KMGT]?$`)
)

// Script describes one batch submission.
type Script struct {
	JobName   string
	Account   string
	Partition string
	TimeLimit string
	NTasks    int
	Memory    string
	NodeList  string
	GPUs      int
	LogFile   string

	// ContainerRuntime and Container describe the image the application
	// runs in. Commands are the invocations inside the container, run in
	// order; a processing job is the build invocation followed by the
	// export invocation.
	ContainerRuntime string
	Container        string
	Commands         [][]string
}

// Validate checks the directive values before rendering.
func (s Script) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.JobName, validation.Required),
		validation.Field(&s.TimeLimit, validation.Required, validation.Match(timeLimitPattern).
			Error("must be HH:MM:SS or D-HH:MM:SS")),
		validation.Field(&s.NTasks, validation.Min(1)),
		validation.Field(&s.Memory, validation.Match(memoryPattern).
			Error("must be a number with optional K/M/G/T suffix")),
		validation.Field(&s.GPUs, validation.Min(0)),
		validation.Field(&s.Container, validation.Required),
		validation.Field(&s.Commands, validation.Required),
	)
}

const scriptTemplate = `#!/bin/bash
#SBATCH --job-name={{.JobName}}
{{- if .Account}}
#SBATCH --account={{.Account}}
{{- end}}
{{- if .Partition}}
#SBATCH --partition={{.Partition}}
{{- end}}
#SBATCH --time={{.TimeLimit}}
#SBATCH --ntasks={{.NTasks}}
{{- if .Memory}}
#SBATCH --mem={{.Memory}}
{{- end}}
{{- if .NodeList}}
#SBATCH --nodelist={{.NodeList}}
{{- end}}
{{- if gt .GPUs 0}}
#SBATCH --gres=gpu:{{.GPUs}}
{{- end}}
{{- if .LogFile}}
#SBATCH --output={{.LogFile}}
{{- end}}

{{range .RuntimeLines}}{{.}}
{{end}}`

var tmpl = template.Must(template.New("sbatch").Parse(scriptTemplate))

// RuntimeLines renders the container invocations at the bottom of the
// script, one line per command, in order.
func (s Script) RuntimeLines() []string {
	runtime := s.ContainerRuntime
	if runtime == "" {
		runtime = DefaultContainerRuntime
	}

	lines := make([]string, 0, len(s.Commands))
	for _, command := range s.Commands {
		parts := []string{runtime, "exec"}
		if s.GPUs > 0 {
			// Expose the allocated GPUs inside the container.
			parts = append(parts, "--nv")
		}
		parts = append(parts, s.Container)
		parts = append(parts, command...)
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}

// Render produces the submission script.
func (s Script) Render() (string, error) {
	if err := s.Validate(); err != nil {
		return "", fmt.Errorf("invalid batch script: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("failed to render batch script: %w", err)
	}
	return buf.String(), nil
}

// Write renders the script and writes it to path.
func (s Script) Write(path string) error {
	content, err := s.Render()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create script directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write batch script: %w", err)
	}
	return nil
}

// Submit writes the script to path and hands it to sbatch. The scheduler's
// job ID line is returned as reported on stdout.
func Submit(ctx context.Context, r runner.Runner, s Script, path string) (string, error) {
	if err := s.Write(path); err != nil {
		return "", err
	}

	stdout, stderr, _, err := r.Run(ctx, "sbatch", path)
	if err != nil {
		return "", fmt.Errorf("sbatch failed: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	return strings.TrimSpace(string(stdout)), nil
}
