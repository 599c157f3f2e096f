// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/snowpitlab/pitctl/internal/cli/output"
)

// minimalJPEG is enough of a JPEG header for extension-based collection.
var minimalJPEG = []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x43, 0x00}

// SetupTestProject creates a temporary project directory with a config
// file, an image folder holding placeholder images, and a marker file.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	for _, dir := range []string{
		filepath.Join(tmpDir, "images"),
		filepath.Join(tmpDir, "output"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	for _, name := range []string{"IMG_0001.jpg", "IMG_0002.jpg"} {
		if err := os.WriteFile(filepath.Join(tmpDir, "images", name), minimalJPEG, 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	markerCSV := "1,2,0.5\n3,4,0.5\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "markers.csv"), []byte(markerCSV), 0o644); err != nil {
		t.Fatalf("failed to create markers.csv: %v", err)
	}

	configYAML := `project_name: test-pit
image_folder: images
output_path: output
marker_file: markers.csv
quality: 2
`
	if err := os.WriteFile(filepath.Join(tmpDir, "pitctl.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatalf("failed to create pitctl.yaml: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer with the given mode and TTY state,
// capturing output in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}
