package shell

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/grantcarthew/loadsum/internal/cli/format"
	"github.com/grantcarthew/loadsum/internal/report"
)

// Terminal is a runner.Display that prints each new text block.
type Terminal struct {
	mu          sync.Mutex
	out         io.Writer
	opts        format.OutputOptions
	interactive bool
	text        string
}

// NewTerminal prints to out. When interactive, results arrive while the
// prompt is waiting for input, so they start on a fresh line and the
// prompt is printed again after them.
func NewTerminal(out io.Writer, opts format.OutputOptions, interactive bool) *Terminal {
	return &Terminal{out: out, opts: opts, interactive: interactive}
}

// SetText replaces the shown text and prints it.
func (t *Terminal) SetText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = text

	// The placeholder and loading lines are printed before the prompt is
	// shown again; everything else lands on a waiting prompt.
	status := text == report.Placeholder || text == report.Loading
	overPrompt := t.interactive && !status

	if overPrompt {
		fmt.Fprintln(t.out)
	}

	switch {
	case !t.opts.UseColor:
		fmt.Fprintln(t.out, text)
	case status:
		color.New(color.FgYellow).Fprintln(t.out, text)
	case strings.HasPrefix(text, report.FailurePrefix):
		color.New(color.FgRed).Fprintln(t.out, text)
	default:
		color.New(color.FgGreen).Fprintln(t.out, text)
	}

	if overPrompt {
		fmt.Fprint(t.out, Prompt)
	}
}

// Text returns what is currently shown.
func (t *Terminal) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text
}
