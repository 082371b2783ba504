package vt

// Style carries the SGR attributes of a single cell, per spec §3 (Grid/Cell).
type Style struct {
	Fg        Color
	Bg        Color
	Bold      bool
	Dim       bool
	Italic    bool
	Underline bool
	Reverse   bool
}

// DefaultStyle is the zero value: default colors, no attributes.
var DefaultStyle = Style{}

// Cell is one position in a Grid: a displayed rune plus its style.
type Cell struct {
	Char rune
	Style
}

// blankCell is what a freshly-sized or cleared Grid position holds.
var blankCell = Cell{Char: ' '}
