// Package format writes analysis results for the command line.
package format

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/grantcarthew/loadsum/internal/analyzer"
	"github.com/grantcarthew/loadsum/internal/report"
	"golang.org/x/term"
)

// OutputOptions controls text formatting behavior.
type OutputOptions struct {
	UseColor bool // Enable ANSI color codes
}

// NewOutputOptions returns output options based on flags and environment.
// Priority: jsonOutput > noColorFlag > NO_COLOR env > TTY detection.
func NewOutputOptions(jsonOutput bool, noColorFlag bool) OutputOptions {
	if jsonOutput || noColorFlag {
		return OutputOptions{UseColor: false}
	}
	if os.Getenv("NO_COLOR") != "" {
		return OutputOptions{UseColor: false}
	}
	return OutputOptions{
		UseColor: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Summary writes the summary, one metric per line, highlighting values
// when color is on.
func Summary(w io.Writer, r *analyzer.Result, opts OutputOptions) error {
	if !opts.UseColor {
		_, err := fmt.Fprintln(w, report.SummaryText(r))
		return err
	}
	for _, l := range report.Lines(r) {
		fmt.Fprint(w, l.Label)
		color.New(color.FgCyan).Fprint(w, l.Value)
		fmt.Fprintln(w, l.Unit)
	}
	return nil
}
