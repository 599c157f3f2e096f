package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/markers"
)

// NewMarkersCommand creates the markers command group.
func NewMarkersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markers",
		Short: "Inspect and validate scale bar definitions",
		Long: `Work with the marker CSV file that defines scale bars.

Each row pairs two coded targets placed in the scene with the measured
distance between them in meters. The photogrammetry application uses these
pairs to fix the reconstruction to real-world scale.`,
	}

	cmd.AddCommand(newMarkersCheckCommand())
	cmd.AddCommand(newMarkersListCommand())
	return cmd
}

func newMarkersCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a marker file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			path, err := markerPath(cmdCtx, args)
			if err != nil {
				return err
			}

			bars, err := markers.Load(path)
			if err != nil {
				return err
			}
			if err := markers.ValidateSet(bars); err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.JSONWanted() {
				return r.JSON(struct {
					File      string `json:"file"`
					ScaleBars int    `json:"scale_bars"`
					Targets   int    `json:"targets"`
					Valid     bool   `json:"valid"`
				}{path, len(bars), len(markers.TargetIDs(bars)), true})
			}
			r.Success("%s: %d scale bars over %d targets", path, len(bars), len(markers.TargetIDs(bars)))
			return nil
		},
	}
}

func newMarkersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [file]",
		Short: "List scale bars with their target labels",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			path, err := markerPath(cmdCtx, args)
			if err != nil {
				return err
			}

			bars, err := markers.Load(path)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.JSONWanted() {
				return r.JSON(bars)
			}

			rows := make([][]string, 0, len(bars))
			for _, bar := range bars {
				from, to := bar.Labels()
				rows = append(rows, []string{
					from,
					to,
					strconv.FormatFloat(bar.Distance, 'f', -1, 64) + " m",
				})
			}
			r.Table([]string{"FROM", "TO", "DISTANCE"}, rows)
			return nil
		},
	}
}

func markerPath(cmdCtx *CommandContext, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if cmdCtx.Cfg.MarkerFile == "" {
		return "", fmt.Errorf("no marker file given and marker_file is not configured")
	}
	return cmdCtx.Cfg.MarkerFile, nil
}
