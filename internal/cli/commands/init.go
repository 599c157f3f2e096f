package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const configTemplate = `# pitctl project configuration
project_name: %s
image_folder: images
output_path: output
image_type: .jpg
marker_file: markers.csv

# Dense cloud quality: 1 = ultra, 2 = high, 4 = medium
quality: 2

metashape:
  binary: metashape.sh
  offscreen: true

# exif:
#   tool: exiftool

# tiles:
#   port: 8080
#   cors: true

# batch:
#   account: snowlab
#   partition: gpu
#   time_limit: "08:00:00"
#   memory: 64G
#   gpus: 1
#   container: /containers/metashape.sif

# archive:
#   bucket: s3://snowpit-archive?region=eu-north-1

# environments:
#   hpc:
#     output_path: /scratch/snowpit/output
`

const markersTemplate = `# from,to,distance (meters)
1,2,0.5
3,4,0.5
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <project-name>",
		Short: "Create a new project skeleton",
		Long: `Create a project directory with a starter pitctl.yaml, an image
folder, and a sample marker file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args[0])
		},
	}
}

func runInit(cmd *cobra.Command, name string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	if _, err := os.Stat(name); err == nil {
		return fmt.Errorf("directory %s already exists", name)
	}

	for _, dir := range []string{name, filepath.Join(name, "images"), filepath.Join(name, "output")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	cfgPath := filepath.Join(name, "pitctl.yaml")
	if err := os.WriteFile(cfgPath, []byte(fmt.Sprintf(configTemplate, name)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}

	markerPath := filepath.Join(name, "markers.csv")
	if err := os.WriteFile(markerPath, []byte(markersTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", markerPath, err)
	}

	r := cmdCtx.Renderer
	r.Success("project %s created", name)
	r.Println("")
	r.Println("Next steps:")
	r.Printf("  1. Copy your images into %s\n", filepath.Join(name, "images"))
	r.Printf("  2. Edit %s with your scale bar measurements\n", markerPath)
	r.Printf("  3. cd %s && pitctl doctor\n", name)
	return nil
}
