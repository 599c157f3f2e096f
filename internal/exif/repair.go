package exif

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/snowpitlab/pitctl/internal/runner"
)

// DefaultTool is the external metadata editor.
const DefaultTool = "exiftool"

// Modification is one tag to add to an image.
type Modification struct {
	Tag   string
	Value string
}

// RepairArgs builds the argument list for the metadata editor. Each tag
// is forwarded as a `--Modify "add <Tag> <Value>"` instruction, matching
// the editor's documented surface.
func RepairArgs(mods []Modification, image string) []string {
	var args []string
	for _, m := range mods {
		args = append(args, "--Modify", fmt.Sprintf("add %s %s", m.Tag, m.Value))
	}
	return append(args, image)
}

// Repair applies the modifications to a single image via the external
// editor. The tool argument falls back to DefaultTool when empty.
func Repair(ctx context.Context, r runner.Runner, tool, image string, mods []Modification) error {
	if len(mods) == 0 {
		return fmt.Errorf("no modifications given for %s", image)
	}
	if tool == "" {
		tool = DefaultTool
	}

	_, stderr, _, err := r.Run(ctx, tool, RepairArgs(mods, image)...)
	if err != nil {
		return fmt.Errorf("%s failed for %s: %w: %s",
			tool, image, err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// RepairAll applies the same modifications to every image, collecting
// per-image failures instead of stopping at the first one.
func RepairAll(ctx context.Context, r runner.Runner, tool string, images []string, mods []Modification) error {
	failures := make(map[string]error)
	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := Repair(ctx, r, tool, image, mods); err != nil {
			failures[image] = err
		}
	}

	if len(failures) == 0 {
		return nil
	}

	paths := make([]string, 0, len(failures))
	for path := range failures {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d image(s) could not be repaired:", len(failures))
	for _, path := range paths {
		fmt.Fprintf(&sb, "\n  %s: %v", path, failures[path])
	}
	return fmt.Errorf("%s", sb.String())
}
