// Package exif finds and repairs metadata problems in source imagery
// before it enters the photogrammetry pipeline. Cameras used in the field
// occasionally drop tags the alignment step depends on; scanning catches
// those images early, and repair forwards fixes to the external metadata
// editor.
package exif

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"golang.org/x/sync/errgroup"
)

// DefaultRequiredTags are the tags the alignment step depends on.
var DefaultRequiredTags = []string{
	"DateTimeOriginal",
	"FocalLength",
	"Make",
	"Model",
}

// Timestamp layout used inside EXIF blocks.
const exifTimeLayout = "2006:01:02 15:04:05"

var registerOnce sync.Once

// Result describes the metadata state of one image.
type Result struct {
	Path    string
	Missing []string
	TakenAt time.Time
	// DecodeError is set when the EXIF block could not be read at all.
	DecodeError error
}

// OK reports whether the image carries all required tags.
func (r Result) OK() bool {
	return r.DecodeError == nil && len(r.Missing) == 0
}

// ScanOptions control a metadata scan.
type ScanOptions struct {
	// ImageType restricts the scan to files with this extension (".jpg").
	ImageType string
	// RequiredTags overrides DefaultRequiredTags when non-empty.
	RequiredTags []string
	// Workers caps parallel decoding. Defaults to GOMAXPROCS.
	Workers int
}

// ScanDir walks the image folder recursively and decodes the EXIF block
// of every matching image in parallel. Results are ordered by path.
func ScanDir(ctx context.Context, dir string, opts ScanOptions) ([]Result, error) {
	imageType := opts.ImageType
	if imageType == "" {
		imageType = ".jpg"
	}

	var images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), imageType) {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk image folder: %w", err)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", imageType, dir)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(images))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = ScanFile(path, opts.RequiredTags)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// ScanFile decodes the EXIF block of a single image and checks the
// required tags.
func ScanFile(path string, required []string) Result {
	registerOnce.Do(func() {
		exif.RegisterParsers(mknote.All...)
	})

	if len(required) == 0 {
		required = DefaultRequiredTags
	}

	result := Result{Path: path}

	f, err := os.Open(path)
	if err != nil {
		result.DecodeError = err
		return result
	}
	defer f.Close()

	data, err := exif.Decode(f)
	if err != nil {
		result.DecodeError = err
		return result
	}

	for _, tag := range required {
		if _, err := data.Get(exif.FieldName(tag)); err != nil {
			result.Missing = append(result.Missing, tag)
		}
	}

	if dt, err := data.Get(exif.DateTimeOriginal); err == nil {
		if raw, err := dt.StringVal(); err == nil {
			if t, err := time.Parse(exifTimeLayout, raw); err == nil {
				result.TakenAt = t
			}
		}
	}

	return result
}

// Problems filters scan results down to images that need attention.
func Problems(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
