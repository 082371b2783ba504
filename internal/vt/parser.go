// Package vt implements the VT Cell Parser: it feeds unescaped %output
// bytes from a tmux pane through an embedded terminal emulator and exposes
// the result as a Grid of styled Cells, per spec §4.2.
package vt

import "bytes"

// Parser maintains the primary and alternate-screen grids for one pane. It
// owns its own engine pair rather than sharing one terminal instance, so
// the alternate-screen save/restore semantics hold even though the
// underlying emulator (midterm) does not implement DEC private modes
// 47/1047/1049 itself.
type Parser struct {
	rows, cols int
	primary    *engine
	alt        *engine
	altActive  bool
}

// NewParser creates a Parser for a pane with the given initial size.
func NewParser(rows, cols int) *Parser {
	return &Parser{
		rows:    rows,
		cols:    cols,
		primary: newEngine(rows, cols),
		alt:     newEngine(rows, cols),
	}
}

// altEnterSeqs/altExitSeqs are the DEC private mode sequences tmux emits
// around full-screen programs (vim, less, ...) that request the
// alternate screen buffer.
var (
	altEnterSeqs = [][]byte{[]byte("\x1b[?1049h"), []byte("\x1b[?1047h"), []byte("\x1b[?47h")}
	altExitSeqs  = [][]byte{[]byte("\x1b[?1049l"), []byte("\x1b[?1047l"), []byte("\x1b[?47l")}
)

// Feed writes already-unescaped pane output through the active screen's
// emulator, switching between primary and alternate screens whenever the
// data contains one of the DEC alternate-screen sequences.
func (p *Parser) Feed(data []byte) {
	for len(data) > 0 {
		idx, seqLen, entering, found := earliestAltSwitch(data)
		if !found {
			p.active().write(data)
			return
		}
		if idx > 0 {
			p.active().write(data[:idx])
		}
		if entering {
			if !p.altActive {
				p.alt = newEngine(p.rows, p.cols)
			}
			p.altActive = true
		} else {
			p.altActive = false
		}
		data = data[idx+seqLen:]
	}
}

func (p *Parser) active() *engine {
	if p.altActive {
		return p.alt
	}
	return p.primary
}

// Resize changes the pane's dimensions, reflowing both the primary and
// alternate screens per spec §4.2's resize-with-reflow policy.
func (p *Parser) Resize(rows, cols int) {
	p.rows, p.cols = rows, cols
	p.primary.resize(rows, cols)
	p.alt.resize(rows, cols)
}

// Snapshot returns the currently-visible grid (primary or alternate).
func (p *Parser) Snapshot() *Grid {
	return p.active().snapshot(p.rows, p.cols)
}

// AlternateActive reports whether the alternate screen is currently shown.
func (p *Parser) AlternateActive() bool {
	return p.altActive
}

// earliestAltSwitch finds the earliest occurrence in data of any
// alt-screen enter/exit sequence, returning its byte offset, length,
// whether it is an enter sequence, and whether anything was found.
func earliestAltSwitch(data []byte) (idx, seqLen int, entering, found bool) {
	best := -1
	bestLen := 0
	bestEnter := false
	for _, seq := range altEnterSeqs {
		if i := bytes.Index(data, seq); i >= 0 && (best < 0 || i < best) {
			best, bestLen, bestEnter = i, len(seq), true
		}
	}
	for _, seq := range altExitSeqs {
		if i := bytes.Index(data, seq); i >= 0 && (best < 0 || i < best) {
			best, bestLen, bestEnter = i, len(seq), false
		}
	}
	if best < 0 {
		return 0, 0, false, false
	}
	return best, bestLen, bestEnter, true
}
