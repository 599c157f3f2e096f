// Package tiles turns exported point clouds into a 3D tileset and serves
// it for local inspection in a browser viewer. Conversion is delegated to
// the external tiling tool; only the invocation and the static server
// live here.
package tiles

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/snowpitlab/pitctl/internal/runner"
)

// DefaultTool is the external point-cloud tiling tool.
const DefaultTool = "py3dtiles"

// ConvertArgs builds the tiling tool's argument list.
func ConvertArgs(input, outDir string, overwrite bool) []string {
	args := []string{"convert", input, "--out", outDir}
	if overwrite {
		args = append(args, "--overwrite")
	}
	return args
}

// Convert runs the tiling tool over the exported .laz file.
func Convert(ctx context.Context, r runner.Runner, tool, input, outDir string, overwrite bool) error {
	if tool == "" {
		tool = DefaultTool
	}

	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("point cloud not found: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create tileset directory: %w", err)
	}

	_, stderr, _, err := r.Run(ctx, tool, ConvertArgs(input, outDir, overwrite)...)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", tool, err, strings.TrimSpace(string(stderr)))
	}
	return nil
}
