package vt

import (
	"strconv"
	"strings"

	"github.com/muesli/termenv"
)

// ColorKind distinguishes the four color representations required by
// spec §3 (Grid/Cell): default terminal color, the 16-slot named palette,
// the 256-color index, and 24-bit RGB.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorNamed
	ColorIndexed
	ColorRGB
)

// Color is a closed sum type over the four kinds above. Code holds the
// palette index for Named (0-15) and Indexed (0-255); R/G/B hold the
// 24-bit components for ColorRGB.
type Color struct {
	Kind    ColorKind
	Code    uint8
	R, G, B uint8
}

// DefaultColor is the zero value, matching a cell with no explicit color.
var DefaultColor = Color{Kind: ColorDefault}

// fromTermenv converts midterm's cell color representation (a
// termenv.Color, the type midterm reuses for SGR color state) into our
// wire-stable Color. Unrecognized/nil colors fall back to ColorDefault.
func fromTermenv(c termenv.Color) Color {
	switch v := c.(type) {
	case nil:
		return DefaultColor
	case termenv.NoColor:
		return DefaultColor
	case termenv.ANSIColor:
		return Color{Kind: ColorNamed, Code: uint8(v)}
	case termenv.ANSI256Color:
		return Color{Kind: ColorIndexed, Code: uint8(v)}
	case termenv.RGBColor:
		r, g, b, ok := parseHexRGB(string(v))
		if !ok {
			return DefaultColor
		}
		return Color{Kind: ColorRGB, R: r, G: g, B: b}
	default:
		return DefaultColor
	}
}

// parseHexRGB parses a "#rrggbb" string as produced by termenv.RGBColor.
func parseHexRGB(hex string) (r, g, b uint8, ok bool) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0, false
	}
	rv, err1 := strconv.ParseUint(hex[1:3], 16, 8)
	gv, err2 := strconv.ParseUint(hex[3:5], 16, 8)
	bv, err3 := strconv.ParseUint(hex[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return uint8(rv), uint8(gv), uint8(bv), true
}

// parseSGR interprets the ANSI SGR escape sequence returned by
// midterm.Format.Render() (e.g. "\x1b[1;31;44m") into a Style. Render()
// emits a complete, non-incremental parameter list for a region, so no
// state carries over between calls.
func parseSGR(seq string) Style {
	var s Style
	params := sgrParams(seq)
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			s = Style{}
		case p == 1:
			s.Bold = true
		case p == 2:
			s.Dim = true
		case p == 3:
			s.Italic = true
		case p == 4:
			s.Underline = true
		case p == 7:
			s.Reverse = true
		case p == 22:
			s.Bold, s.Dim = false, false
		case p == 23:
			s.Italic = false
		case p == 24:
			s.Underline = false
		case p == 27:
			s.Reverse = false
		case p >= 30 && p <= 37:
			s.Fg = Color{Kind: ColorNamed, Code: uint8(p - 30)}
		case p == 38:
			c, n := parseExtendedColor(params[i:])
			s.Fg = c
			i += n
		case p == 39:
			s.Fg = DefaultColor
		case p >= 40 && p <= 47:
			s.Bg = Color{Kind: ColorNamed, Code: uint8(p - 40)}
		case p == 48:
			c, n := parseExtendedColor(params[i:])
			s.Bg = c
			i += n
		case p == 49:
			s.Bg = DefaultColor
		case p >= 90 && p <= 97:
			s.Fg = Color{Kind: ColorNamed, Code: uint8(p - 90 + 8)}
		case p >= 100 && p <= 107:
			s.Bg = Color{Kind: ColorNamed, Code: uint8(p - 100 + 8)}
		}
	}
	return s
}

// parseExtendedColor parses a 38/48 "extended color" run: either
// "38;5;N" (indexed) or "38;2;R;G;B" (24-bit). params[0] is the 38/48
// selector itself. It returns the decoded color and how many extra params
// (beyond the selector) were consumed.
func parseExtendedColor(params []int) (Color, int) {
	if len(params) < 2 {
		return DefaultColor, 0
	}
	switch params[1] {
	case 5:
		if len(params) < 3 {
			return DefaultColor, 1
		}
		return Color{Kind: ColorIndexed, Code: uint8(params[2])}, 2
	case 2:
		if len(params) < 5 {
			return DefaultColor, len(params) - 1
		}
		return Color{Kind: ColorRGB, R: uint8(params[2]), G: uint8(params[3]), B: uint8(params[4])}, 4
	default:
		return DefaultColor, 1
	}
}

// sgrParams extracts the semicolon-separated integer parameters from a
// "\x1b[...m" escape sequence. Empty parameters (as in "\x1b[m") are
// treated as 0, matching SGR's default-reset convention.
func sgrParams(seq string) []int {
	start := strings.IndexByte(seq, '[')
	end := strings.LastIndexByte(seq, 'm')
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	body := seq[start+1 : end]
	if body == "" {
		return []int{0}
	}
	parts := strings.Split(body, ";")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			out = append(out, 0)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// X11 renders the color as an X11 "rgb:RRRR/GGGG/BBBB" string, the form of
// an OSC 10/11 foreground/background color reply. Named and indexed colors
// have no fixed RGB mapping here and return "".
func (c Color) X11() string {
	if c.Kind != ColorRGB {
		return ""
	}
	return "rgb:" + hex4(c.R) + "/" + hex4(c.G) + "/" + hex4(c.B)
}

func hex4(v uint8) string {
	full := uint16(v) * 0x101
	s := strconv.FormatUint(uint64(full), 16)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
