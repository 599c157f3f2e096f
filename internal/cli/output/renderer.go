// Package output renders command results as human-readable text or JSON.
// Text output uses color only when attached to a terminal, so piped
// output stays clean for scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

const (
	// ModeAuto renders text, with color when stdout is a terminal.
	ModeAuto Mode = "auto"
	// ModeText renders plain text.
	ModeText Mode = "text"
	// ModeJSON renders machine-readable JSON.
	ModeJSON Mode = "json"
)

// Renderer writes command results.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   Mode
}

// NewRenderer creates a renderer, detecting terminal attachment from the
// output writer.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state. Used
// in tests to exercise both color paths.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{out: out, errOut: errOut, isTTY: isTTY, mode: mode}
}

// JSONWanted reports whether results should be rendered as JSON.
func (r *Renderer) JSONWanted() bool {
	return r.mode == ModeJSON
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Printf writes formatted text to the output stream.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Println writes a line to the output stream.
func (r *Renderer) Println(args ...any) {
	_, _ = fmt.Fprintln(r.out, args...)
}

// Success writes a success line, colored on terminals.
func (r *Renderer) Success(format string, args ...any) {
	r.statusLine(text.FgGreen, "ok", format, args...)
}

// Warning writes a warning line to the error stream.
func (r *Renderer) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	prefix := "warning:"
	if r.isTTY {
		prefix = text.FgYellow.Sprint(prefix)
	}
	_, _ = fmt.Fprintf(r.errOut, "%s %s\n", prefix, msg)
}

// Error writes an error line to the error stream.
func (r *Renderer) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	prefix := "error:"
	if r.isTTY {
		prefix = text.FgRed.Sprint(prefix)
	}
	_, _ = fmt.Fprintf(r.errOut, "%s %s\n", prefix, msg)
}

func (r *Renderer) statusLine(color text.Color, marker, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.isTTY {
		marker = color.Sprint(marker)
	}
	_, _ = fmt.Fprintf(r.out, "%s %s\n", marker, msg)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes a table with the given header and rows.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, cell := range row {
			tr[i] = cell
		}
		t.AppendRow(tr)
	}

	if r.isTTY {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleDefault)
	}
	t.Render()
}
