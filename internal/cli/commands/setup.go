// Package commands implements the pitctl subcommands.
package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/cli/config"
	"github.com/snowpitlab/pitctl/internal/cli/output"
	"github.com/snowpitlab/pitctl/internal/engine"
	"github.com/snowpitlab/pitctl/internal/metashape"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	eng, err := createEngine(cfg, logger, cmd)
	if err != nil {
		return nil, nil, err
	}

	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an
// engine. Useful for commands that do not touch the pipeline or its run
// history.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, falling back to defaults
// when no load has happened (direct command construction in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		ImageType:    config.DefaultImageType,
		Quality:      config.DefaultQuality,
		StatePath:    config.DefaultStateFile,
		Environment:  config.DefaultEnv,
		OutputFormat: config.DefaultOutput,
	}
}

func createEngine(cfg *config.Config, logger *slog.Logger, cmd *cobra.Command) (*engine.Engine, error) {
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, err
		}
	}

	quality, err := metashape.ParseQuality(cfg.Quality)
	if err != nil {
		return nil, err
	}

	ms := cfg.GetMetashape()
	tl := cfg.GetTiles()

	engineCfg := engine.Config{
		ProjectName:     cfg.ProjectName,
		OutputPath:      cfg.OutputPath,
		ImageFolder:     cfg.ImageFolder,
		ImageType:       cfg.ImageType,
		MarkerFile:      cfg.MarkerFile,
		Quality:         quality,
		MetashapeBinary: ms.Binary,
		MetashapeScript: ms.Script,
		Offscreen:       ms.Offscreen,
		TilesTool:       tl.Tool,
		TilesDir:        tl.Dir,
		Environment:     cfg.Environment,
		StatePath:       cfg.StatePath,
		Logger:          logger,
	}
	if cfg.Verbose {
		engineCfg.Stdout = cmd.OutOrStdout()
		engineCfg.Stderr = cmd.ErrOrStderr()
	}

	return engine.New(engineCfg)
}
