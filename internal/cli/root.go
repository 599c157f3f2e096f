// Package cli provides the command-line interface for pitctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/cli/commands"
	"github.com/snowpitlab/pitctl/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pitctl",
		Short: "pitctl - Snow pit photogrammetry workflow",
		Long: `pitctl drives the snow pit photogrammetry workflow end to end.

It validates image metadata and scale bar markers, runs the headless
photogrammetry application, converts exported point clouds to 3D Tiles,
serves them for preview, and submits processing jobs to a SLURM cluster.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			cmd.SetContext(context.WithValue(cmd.Context(), config.LoggerKey(), logger))

			if cfg.Verbose {
				if file := config.GetConfigFileUsed(); file != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", file)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pitctl.yaml)")
	rootCmd.PersistentFlags().String("project-name", "", "Project name, used for all artifact filenames")
	rootCmd.PersistentFlags().String("image-folder", "", "Folder holding the source images")
	rootCmd.PersistentFlags().String("output-path", "", "Directory for pipeline outputs")
	rootCmd.PersistentFlags().String("image-type", "", "Image file extension (default: .jpg)")
	rootCmd.PersistentFlags().String("marker-file", "", "CSV file with scale bar definitions")
	rootCmd.PersistentFlags().Int("quality", 0, "Dense cloud quality: 1=ultra, 2=high, 4=medium")
	rootCmd.PersistentFlags().String("state", "", "Path to the run history database")
	rootCmd.PersistentFlags().String("env", "", "Environment name")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewPlanCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())
	rootCmd.AddCommand(commands.NewMarkersCommand())
	rootCmd.AddCommand(commands.NewExifCommand())
	rootCmd.AddCommand(commands.NewBatchCommand())
	rootCmd.AddCommand(commands.NewTilesCommand())
	rootCmd.AddCommand(commands.NewArchiveCommand())

	return rootCmd
}

// newLogger builds the CLI logger. Verbose enables debug records; either
// way records go to stderr so stdout stays parseable.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command. Long-lived commands (serve, watch) stop
// cleanly on SIGINT and SIGTERM via the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
