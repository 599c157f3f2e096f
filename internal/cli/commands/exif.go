package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snowpitlab/pitctl/internal/exif"
	"github.com/snowpitlab/pitctl/internal/runner"
)

// ExifRepairOptions holds options for the exif repair command.
type ExifRepairOptions struct {
	Set    []string
	DryRun bool
}

// NewExifCommand creates the exif command group.
func NewExifCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exif",
		Short: "Scan and repair image metadata",
		Long: `Inspect EXIF metadata on the project's images.

The photogrammetry application needs capture time, focal length, and camera
identity to calibrate the reconstruction. Images that went through editing
tools sometimes lose these tags; scan finds them and repair writes them
back using the external metadata editor.`,
	}

	cmd.AddCommand(newExifScanCommand())
	cmd.AddCommand(newExifRepairCommand())
	cmd.AddCommand(newExifWatchCommand())
	return cmd
}

func newExifScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [folder]",
		Short: "Report images with missing metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			folder, err := imageFolder(cmdCtx, args)
			if err != nil {
				return err
			}

			ec := cmdCtx.Cfg.GetExif()
			results, err := exif.ScanDir(cmd.Context(), folder, exif.ScanOptions{
				ImageType:    cmdCtx.Cfg.ImageType,
				RequiredTags: ec.RequiredTags,
				Workers:      ec.Workers,
			})
			if err != nil {
				return err
			}

			problems := exif.Problems(results)
			r := cmdCtx.Renderer

			if r.JSONWanted() {
				return r.JSON(scanOutput(results, problems))
			}

			if len(problems) == 0 {
				r.Success("%d images scanned, all metadata present", len(results))
				return nil
			}

			rows := make([][]string, 0, len(problems))
			for _, p := range problems {
				detail := strings.Join(p.Missing, ", ")
				if p.DecodeError != nil {
					detail = "unreadable: " + p.DecodeError.Error()
				}
				rows = append(rows, []string{p.Path, detail})
			}
			r.Table([]string{"IMAGE", "MISSING"}, rows)
			r.Warning("%d of %d images have incomplete metadata", len(problems), len(results))
			return nil
		},
	}
}

// ScanOutput is the JSON output for the exif scan command.
type ScanOutput struct {
	Scanned  int           `json:"scanned"`
	Problems []ScanProblem `json:"problems"`
}

// ScanProblem describes one image with incomplete metadata.
type ScanProblem struct {
	Image   string   `json:"image"`
	Missing []string `json:"missing,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func scanOutput(results, problems []exif.Result) *ScanOutput {
	out := &ScanOutput{Scanned: len(results)}
	for _, p := range problems {
		sp := ScanProblem{Image: p.Path, Missing: p.Missing}
		if p.DecodeError != nil {
			sp.Error = p.DecodeError.Error()
		}
		out.Problems = append(out.Problems, sp)
	}
	return out
}

func newExifRepairCommand() *cobra.Command {
	opts := &ExifRepairOptions{}

	cmd := &cobra.Command{
		Use:   "repair <image>...",
		Short: "Write missing metadata tags onto images",
		Long: `Add EXIF tags to the given images via the external metadata editor.

Each --set flag takes a TAG=VALUE pair, for example:

  pitctl exif repair --set FocalLength=24 --set Make=Canon IMG_0001.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)

			mods, err := parseModifications(opts.Set)
			if err != nil {
				return err
			}
			if len(mods) == 0 {
				return fmt.Errorf("at least one --set TAG=VALUE is required")
			}

			tool := cmdCtx.Cfg.GetExif().Tool
			r := cmdCtx.Renderer

			if opts.DryRun {
				for _, image := range args {
					r.Println(tool + " " + strings.Join(exif.RepairArgs(mods, image), " "))
				}
				return nil
			}

			if err := exif.RepairAll(cmd.Context(), runner.ExecRunner{}, tool, args, mods); err != nil {
				return err
			}
			r.Success("%d images repaired", len(args))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "Tag to add, as TAG=VALUE (repeatable)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the editor invocations without running them")

	return cmd
}

func newExifWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [folder]",
		Short: "Watch a folder and report metadata problems as images arrive",
		Long: `Watch the image folder and scan each new or modified image.

Useful while offloading cards in the field: problems surface immediately
instead of at preflight time. Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			folder, err := imageFolder(cmdCtx, args)
			if err != nil {
				return err
			}

			ec := cmdCtx.Cfg.GetExif()
			r := cmdCtx.Renderer
			r.Printf("Watching %s for %s images...\n", folder, cmdCtx.Cfg.ImageType)

			return exif.Watch(cmd.Context(), folder, cmdCtx.Cfg.ImageType, cmdCtx.Logger, func(path string) {
				// Writes arrive in bursts while the file is still being
				// copied; give the copy a moment to finish.
				time.Sleep(200 * time.Millisecond)

				result := exif.ScanFile(path, ec.RequiredTags)
				switch {
				case result.DecodeError != nil:
					r.Warning("%s: %v", path, result.DecodeError)
				case len(result.Missing) > 0:
					r.Warning("%s: missing %s", path, strings.Join(result.Missing, ", "))
				default:
					r.Success("%s", path)
				}
			})
		},
	}
}

func parseModifications(pairs []string) ([]exif.Modification, error) {
	mods := make([]exif.Modification, 0, len(pairs))
	for _, pair := range pairs {
		tag, value, ok := strings.Cut(pair, "=")
		if !ok || tag == "" || value == "" {
			return nil, fmt.Errorf("invalid --set %q, expected TAG=VALUE", pair)
		}
		mods = append(mods, exif.Modification{Tag: tag, Value: value})
	}
	return mods, nil
}

func imageFolder(cmdCtx *CommandContext, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if cmdCtx.Cfg.ImageFolder == "" {
		return "", fmt.Errorf("no folder given and image_folder is not configured")
	}
	return cmdCtx.Cfg.ImageFolder, nil
}
