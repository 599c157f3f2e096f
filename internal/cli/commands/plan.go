package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// PlanOptions holds options for the plan command.
type PlanOptions struct {
	Select     string
	Downstream bool
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	opts := &PlanOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the stages a run would execute",
		Long: `Print the pipeline stages in execution order, without running anything.

Accepts the same --select and --downstream flags as run, so the exact
stage set of a partial run can be previewed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of stages to plan")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream stages when using --select")

	return cmd
}

// PlanOutput is the JSON output for the plan command.
type PlanOutput struct {
	Stages []PlanStage `json:"stages"`
}

// PlanStage describes one planned stage and its direct dependencies.
type PlanStage struct {
	Stage     string   `json:"stage"`
	DependsOn []string `json:"depends_on,omitempty"`
}

func runPlan(cmd *cobra.Command, opts *PlanOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var order []string
	if opts.Select != "" {
		order, err = cmdCtx.Engine.PlanSelected(splitList(opts.Select), opts.Downstream)
	} else {
		order, err = cmdCtx.Engine.Plan()
	}
	if err != nil {
		return err
	}

	graph := cmdCtx.Engine.Graph()
	r := cmdCtx.Renderer

	if r.JSONWanted() {
		out := &PlanOutput{}
		for _, stage := range order {
			out.Stages = append(out.Stages, PlanStage{
				Stage:     stage,
				DependsOn: graph.Parents(stage),
			})
		}
		return r.JSON(out)
	}

	rows := make([][]string, 0, len(order))
	for i, stage := range order {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			stage,
			strings.Join(graph.Parents(stage), ", "),
		})
	}
	r.Table([]string{"#", "STAGE", "DEPENDS ON"}, rows)
	return nil
}
