package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/metashape"
	"github.com/snowpitlab/pitctl/internal/runner"
	"github.com/snowpitlab/pitctl/internal/tiles"
)

// TilesConvertOptions holds options for the tiles convert command.
type TilesConvertOptions struct {
	Out       string
	Overwrite bool
}

// TilesServeOptions holds options for the tiles serve command.
type TilesServeOptions struct {
	Port   int
	NoCORS bool
}

// NewTilesCommand creates the tiles command group.
func NewTilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiles",
		Short: "Convert point clouds to 3D Tiles and preview them",
		Long: `Turn the exported point cloud into a streamable 3D Tiles tileset
and serve it locally for viewers like CesiumJS.`,
	}

	cmd.AddCommand(newTilesConvertCommand())
	cmd.AddCommand(newTilesServeCommand())
	return cmd
}

func newTilesConvertCommand() *cobra.Command {
	opts := &TilesConvertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [pointcloud]",
		Short: "Convert a point cloud into a 3D Tiles tileset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			cfg := cmdCtx.Cfg

			input := ""
			if len(args) == 1 {
				input = args[0]
			} else {
				if err := cfg.Validate(); err != nil {
					return err
				}
				input = filepath.Join(cfg.OutputPath, cfg.ProjectName+metashape.PointCloudExt)
			}

			outDir := opts.Out
			if outDir == "" {
				outDir = tilesDir(cmdCtx)
			}

			tool := cfg.GetTiles().Tool
			if err := tiles.Convert(cmd.Context(), runner.ExecRunner{}, tool, input, outDir, opts.Overwrite); err != nil {
				return err
			}
			cmdCtx.Renderer.Success("tileset written to %s", outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "Tileset output directory (default: <output-path>/tiles)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Replace an existing tileset")
	return cmd
}

func newTilesServeCommand() *cobra.Command {
	opts := &TilesServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve a tileset over HTTP",
		Long: `Serve the tileset directory on localhost.

Cross-origin requests are allowed by default so a viewer running on
another port can fetch tiles. Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)

			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				dir = tilesDir(cmdCtx)
			}

			tc := cmdCtx.Cfg.GetTiles()
			port := tc.Port
			if cmd.Flags().Changed("port") {
				port = opts.Port
			}
			cors := tc.CORS
			if opts.NoCORS {
				cors = false
			}

			srv := &tiles.Server{
				Dir:    dir,
				Port:   port,
				CORS:   cors,
				Logger: cmdCtx.Logger,
			}
			cmdCtx.Renderer.Printf("Serving %s on http://localhost:%d\n", dir, port)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to listen on")
	cmd.Flags().BoolVar(&opts.NoCORS, "no-cors", false, "Disable cross-origin headers")
	return cmd
}

func tilesDir(cmdCtx *CommandContext) string {
	if dir := cmdCtx.Cfg.GetTiles().Dir; dir != "" {
		return dir
	}
	return filepath.Join(cmdCtx.Cfg.OutputPath, "tiles")
}
