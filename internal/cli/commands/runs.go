package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/state"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show pipeline run history",
		Long: `List recent pipeline runs from the state database.

With a run ID argument, shows the per-stage records of that run instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runRunDetail(cmd, args[0])
			}
			return runRunList(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to show")

	return cmd
}

func runRunList(cmd *cobra.Command, opts *RunsOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Engine.Store().ListRuns(opts.Limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.JSONWanted() {
		return r.JSON(runs)
	}

	if len(runs) == 0 {
		r.Println("No runs recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Project,
			run.Environment,
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			runElapsed(run),
		})
	}
	r.Table([]string{"RUN", "PROJECT", "ENV", "STATUS", "STARTED", "ELAPSED"}, rows)
	return nil
}

func runRunDetail(cmd *cobra.Command, runID string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cmdCtx.Engine.Store()
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	stages, err := store.ListStageRuns(runID)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.JSONWanted() {
		return r.JSON(struct {
			Run    *state.Run        `json:"run"`
			Stages []*state.StageRun `json:"stages"`
		}{run, stages})
	}

	r.Printf("Run %s (%s) on %s: %s\n", run.ID, run.Project, run.Environment, run.Status)
	if run.Error != "" {
		r.Printf("Error: %s\n", run.Error)
	}

	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		rows = append(rows, []string{
			s.Stage,
			string(s.Status),
			(time.Duration(s.DurationMS) * time.Millisecond).String(),
			s.Error,
		})
	}
	r.Table([]string{"STAGE", "STATUS", "DURATION", "ERROR"}, rows)
	return nil
}

func runElapsed(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
}
