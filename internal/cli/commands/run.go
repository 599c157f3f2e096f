package commands

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/engine"
)

// errRunFailed signals a non-zero exit without re-printing stage errors.
var errRunFailed = errors.New("one or more stages failed")

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     string
	Downstream bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the photogrammetry pipeline",
		Long: `Execute the pipeline stages in dependency order.

By default all stages run: preflight, process, export, tiles. Use --select
to run specific stages, and --downstream to include everything that depends
on the selection.`,
		Example: `  # Run the full pipeline
  pitctl run

  # Re-run exporting and tiling only
  pitctl run --select export --downstream

  # Validate inputs without processing
  pitctl run --select preflight`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of stages to run")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream stages when using --select")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	ctx := cmd.Context()
	start := time.Now()

	var result *engine.RunResult
	if opts.Select != "" {
		selected := splitList(opts.Select)
		result, err = cmdCtx.Engine.RunSelected(ctx, selected, opts.Downstream)
	} else {
		result, err = cmdCtx.Engine.Run(ctx)
	}
	if err != nil {
		return err
	}

	elapsed := time.Since(start).Round(time.Millisecond)

	r := cmdCtx.Renderer
	if r.JSONWanted() {
		return r.JSON(runResultJSON(result, elapsed))
	}

	rows := make([][]string, 0, len(result.Stages))
	for _, s := range result.Stages {
		detail := ""
		if s.Err != nil {
			detail = s.Err.Error()
		}
		rows = append(rows, []string{s.Stage, string(s.Status), s.Duration.Round(time.Millisecond).String(), detail})
	}
	r.Table([]string{"STAGE", "STATUS", "DURATION", "DETAIL"}, rows)

	if result.Failed() {
		r.Error("run %s failed: %s", result.Run.ID, result.Run.Error)
		return errRunFailed
	}
	r.Success("run %s completed in %s", result.Run.ID, elapsed)
	return nil
}

// StageOutput is the JSON record for one executed stage.
type StageOutput struct {
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunOutput is the JSON output for the run command.
type RunOutput struct {
	RunID     string        `json:"run_id"`
	Status    string        `json:"status"`
	ElapsedMS int64         `json:"elapsed_ms"`
	Stages    []StageOutput `json:"stages"`
	Error     string        `json:"error,omitempty"`
}

func runResultJSON(result *engine.RunResult, elapsed time.Duration) *RunOutput {
	out := &RunOutput{
		RunID:     result.Run.ID,
		Status:    string(result.Run.Status),
		ElapsedMS: elapsed.Milliseconds(),
		Error:     result.Run.Error,
	}
	for _, s := range result.Stages {
		so := StageOutput{
			Stage:      s.Stage,
			Status:     string(s.Status),
			DurationMS: s.Duration.Milliseconds(),
		}
		if s.Err != nil {
			so.Error = s.Err.Error()
		}
		out.Stages = append(out.Stages, so)
	}
	return out
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
