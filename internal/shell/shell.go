// Package shell is the interactive front end: a line-editing prompt that
// submits URLs to a dispatcher and a terminal region showing the result.
package shell

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grantcarthew/loadsum/internal/report"
	"github.com/grantcarthew/loadsum/internal/runner"
	"github.com/peterh/liner"
	"golang.org/x/term"
)

// Prompt is shown while waiting for a URL.
const Prompt = "url> "

// Dispatcher runs analyses on behalf of the shell.
type Dispatcher interface {
	Submit(input string) (id string, ok bool)
	Cancel() bool
	Running() bool
	Last() (runner.Run, bool)
	Wait()
}

// REPL reads URLs and shell commands until exit or EOF.
type REPL struct {
	dispatcher  Dispatcher
	out         io.Writer
	liner       *liner.State
	history     []string
	interactive bool
	done        bool
}

// New creates a REPL writing its own messages to out. When interactive is
// false each submitted URL is waited on before the next line is read.
func New(d Dispatcher, out io.Writer, interactive bool) *REPL {
	return &REPL{dispatcher: d, out: out, interactive: interactive}
}

// IsStdinTTY returns true if stdin is a terminal.
func IsStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Run starts the REPL loop. Blocks until exit command or EOF.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)

	for !r.done {
		line, err := r.liner.Prompt(Prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)
		r.history = append(r.history, line)
		r.handleLine(line)
	}
	return nil
}

// handleLine runs a shell command or submits the line as a URL.
func (r *REPL) handleLine(line string) {
	if r.handleSpecialCommand(line) {
		return
	}
	if _, ok := r.dispatcher.Submit(line); ok && !r.interactive {
		r.dispatcher.Wait()
	}
}

// replCommands lists shell commands for abbreviation matching.
var replCommands = []string{"exit", "quit", "help", "history", "last", "cancel"}

// expandAbbreviation expands a command prefix to a full command name.
// Returns the expanded command and true if exactly one match found.
// Returns empty string and false if no matches or ambiguous.
func expandAbbreviation(prefix string, commands []string) (string, bool) {
	prefix = strings.ToLower(prefix)
	var matches []string
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, prefix) {
			matches = append(matches, cmd)
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return "", false
}

// handleSpecialCommand handles shell commands.
// Returns true if the command was handled, false otherwise.
func (r *REPL) handleSpecialCommand(line string) bool {
	parts := strings.Fields(line)
	if len(parts) != 1 {
		return false
	}
	cmd := strings.ToLower(parts[0])

	if expanded, ok := expandAbbreviation(cmd, replCommands); ok {
		cmd = expanded
	}

	switch cmd {
	case "exit", "quit":
		r.done = true
		return true

	case "help", "?":
		r.printHelp()
		return true

	case "history":
		r.printHistory()
		return true

	case "last":
		r.printLast()
		return true

	case "cancel":
		if !r.dispatcher.Cancel() {
			fmt.Fprintln(r.out, "nothing to cancel")
		}
		return true
	}

	return false
}

// printHelp displays available commands.
func (r *REPL) printHelp() {
	help := `
Enter a URL (including the scheme) to analyze it. A new URL cancels the
analysis in progress.

Commands (unique prefixes accepted: he=help, hi=history, l=last, c=cancel, e=exit, q=quit):
  help, ?     Show this help
  history     Show input history
  last        Show the most recent result and whether one is loading
  cancel      Stop the analysis in progress
  exit, quit  Exit
`
	fmt.Fprintln(r.out, help)
}

// printHistory displays input history.
func (r *REPL) printHistory() {
	for i, cmd := range r.history {
		fmt.Fprintf(r.out, "  %d  %s\n", i+1, cmd)
	}
}

// printLast shows the last finished run, preceded by the loading line
// while a newer one is in flight.
func (r *REPL) printLast() {
	running := r.dispatcher.Running()
	if running {
		fmt.Fprintln(r.out, report.Loading)
	}

	run, ok := r.dispatcher.Last()
	if !ok {
		if !running {
			fmt.Fprintln(r.out, report.Placeholder)
		}
		return
	}

	fmt.Fprintf(r.out, "%s  %s  (%s)\n", run.URL, run.Finished.Format("15:04:05"),
		run.Finished.Sub(run.Started).Round(time.Millisecond))
	fmt.Fprintln(r.out, report.Outcome(run.Result, run.Err))
}
