package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the sessionlock banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"                     _             _            _    ", "#38bdf8"},
		{"  ___  ___  ___ ___(_) ___  _ __ | | ___   ___| | __", "#22d3ee"},
		{" / __|/ _ \\/ __/ __| |/ _ \\| '_ \\| |/ _ \\ / __| |/ /", "#2dd4bf"},
		{" \\__ \\  __/\\__ \\__ \\ | (_) | | | | | (_) | (__|   < ", "#34d399"},
		{" |___/\\___||___/___/_|\\___/|_| |_|_|\\___/ \\___|_|\\_\\", "#4ade80"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}
