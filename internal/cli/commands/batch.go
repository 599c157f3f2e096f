package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/batch"
	"github.com/snowpitlab/pitctl/internal/cli/config"
	"github.com/snowpitlab/pitctl/internal/metashape"
	"github.com/snowpitlab/pitctl/internal/runner"
)

// BatchOptions holds options for the batch commands.
type BatchOptions struct {
	ScriptFile string
	NoExport   bool
}

// NewBatchCommand creates the batch command group.
func NewBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Submit processing to a SLURM cluster",
		Long: `Generate and submit a cluster job for the processing pipeline.

The job script wraps the photogrammetry invocation in the configured
container runtime, with the scheduler directives taken from the batch
section of pitctl.yaml (account, partition, time limit, GPUs, ...).`,
	}

	cmd.AddCommand(newBatchScriptCommand())
	cmd.AddCommand(newBatchSubmitCommand())
	return cmd
}

func newBatchScriptCommand() *cobra.Command {
	opts := &BatchOptions{}

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Print the submission script without submitting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			if err := cmdCtx.Cfg.Validate(); err != nil {
				return err
			}

			script, err := buildScript(cmdCtx.Cfg, !opts.NoExport)
			if err != nil {
				return err
			}

			content, err := script.Render()
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Printf("%s", content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.NoExport, "no-export", false, "Build the project without exporting artifacts")
	return cmd
}

func newBatchSubmitCommand() *cobra.Command {
	opts := &BatchOptions{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Write the submission script and hand it to sbatch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			if err := cmdCtx.Cfg.Validate(); err != nil {
				return err
			}

			script, err := buildScript(cmdCtx.Cfg, !opts.NoExport)
			if err != nil {
				return err
			}

			path := opts.ScriptFile
			if path == "" {
				path = filepath.Join(cmdCtx.Cfg.OutputPath, cmdCtx.Cfg.ProjectName+".sbatch")
			}

			submitted, err := batch.Submit(cmd.Context(), runner.ExecRunner{}, script, path)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.JSONWanted() {
				return r.JSON(struct {
					Script    string `json:"script"`
					Submitted string `json:"submitted"`
				}{path, submitted})
			}
			r.Success("%s", submitted)
			r.Printf("Script: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ScriptFile, "script-file", "", "Where to write the submission script (default: <output-path>/<project>.sbatch)")
	cmd.Flags().BoolVar(&opts.NoExport, "no-export", false, "Build the project without exporting artifacts")
	return cmd
}

// buildScript assembles the submission script from the project and batch
// configuration. The job always runs the build invocation; with export
// enabled a second invocation follows to export the point cloud and
// report, since the processing script exports instead of building when
// given --export.
func buildScript(cfg *config.Config, export bool) (batch.Script, error) {
	quality, err := metashape.ParseQuality(cfg.Quality)
	if err != nil {
		return batch.Script{}, err
	}

	ms := cfg.GetMetashape()
	inv := metashape.Invocation{
		Binary:      ms.Binary,
		Script:      ms.Script,
		Offscreen:   ms.Offscreen,
		ProjectName: cfg.ProjectName,
		OutputPath:  cfg.OutputPath,
		ImageFolder: cfg.ImageFolder,
		ImageType:   cfg.ImageType,
		MarkerFile:  cfg.MarkerFile,
		Quality:     quality,
	}

	binary, args := inv.Command()
	commands := [][]string{append([]string{binary}, args...)}
	if export {
		inv.Export = true
		binary, args = inv.Command()
		commands = append(commands, append([]string{binary}, args...))
	}

	bc := cfg.GetBatch()
	script := batch.Script{
		JobName:          cfg.ProjectName,
		Account:          bc.Account,
		Partition:        bc.Partition,
		TimeLimit:        bc.TimeLimit,
		NTasks:           bc.NTasks,
		Memory:           bc.Memory,
		NodeList:         bc.NodeList,
		GPUs:             bc.GPUs,
		LogFile:          bc.LogFile,
		ContainerRuntime: bc.Runtime,
		Container:        bc.Container,
		Commands:         commands,
	}
	return script, nil
}
