package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
)

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func colorize(code, s string) string {
	if !colorEnabled || s == "" {
		return s
	}
	return code + s + "\033[0m"
}

func bold(s string) string   { return colorize("\033[1m", s) }
func accent(s string) string { return colorize("\033[36m", s) }
func okDot() string          { return colorize("\033[32m", "●") }

// stateDot renders a Monitor's lifecycle state (registry.Status.State) as
// a single colored glyph: green while live, yellow while initializing or
// draining toward the grace-period timeout, gray once gone.
func stateDot(state string) string {
	switch state {
	case "live":
		return okDot()
	case "initializing", "draining":
		return colorize("\033[33m", "○")
	default:
		return colorize("\033[37m", "○")
	}
}
