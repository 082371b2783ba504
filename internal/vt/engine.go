package vt

import (
	"io"

	"github.com/vito/midterm"
)

// engine wraps a single *midterm.Terminal. All direct midterm field/method
// access is confined to this file so the rest of the package works only
// against our own Grid/Cell/Color types.
//
// midterm keeps cell content in Content ([][]rune, one slice per row,
// possibly taller than the terminal's row count) and styling separately in
// Format, queried a row at a time via Format.Regions(row), which yields
// run-length-encoded (Format, Size) pairs whose Format.Render() produces a
// complete (non-incremental) SGR escape sequence for that run.
type engine struct {
	term *midterm.Terminal
}

func newEngine(rows, cols int) *engine {
	t := midterm.NewTerminal(rows, cols)
	// We never hold the other end of a real pty for these panes -- tmux
	// itself answers cursor/color queries for the client actually attached
	// to it. Our copy of the stream is read-only, so DA/OSC query/response
	// forwarding is simply discarded rather than looped anywhere.
	t.ForwardRequests = io.Discard
	t.ForwardResponses = io.Discard
	return &engine{term: t}
}

func (e *engine) write(p []byte) {
	e.term.Write(p)
}

func (e *engine) resize(rows, cols int) {
	e.term.Resize(rows, cols)
}

// snapshot projects the engine's current cell buffer and cursor into our
// own Grid representation.
func (e *engine) snapshot(rows, cols int) *Grid {
	g := NewGrid(rows, cols)
	content := e.term.Content
	for y := 0; y < rows; y++ {
		if y >= len(content) {
			break
		}
		line := content[y]
		pos := 0
		for region := range e.term.Format.Regions(y) {
			style := parseSGR(region.F.Render())
			end := pos + region.Size
			for x := pos; x < end && x < cols; x++ {
				ch := rune(' ')
				if x < len(line) {
					ch = line[x]
				}
				g.Cells[y][x] = Cell{Char: ch, Style: style}
			}
			pos = end
		}
	}
	g.CursorRow = e.term.Cursor.Y
	g.CursorCol = e.term.Cursor.X
	g.CursorVisible = true
	return g
}
