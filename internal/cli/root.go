package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/grantcarthew/loadsum/internal/config"
	"github.com/grantcarthew/loadsum/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version is set at build time.
var Version = "dev"

// Debug enables verbose debug output.
var Debug bool

// JSONOutput enables JSON output format (default is text).
var JSONOutput bool

// NoColor disables color output.
var NoColor bool

// Settings that override the config file and environment when given.
var (
	configPath  string
	chromePath  string
	headless    bool
	idleFlag    time.Duration
	pollFlag    time.Duration
	maxWaitFlag time.Duration
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "loadsum [url]",
	Short: "Page-load summary for a URL",
	Long: `loadsum loads a page in a fresh headless Chrome with every cache disabled and
reports request count, transferred and decoded bytes, DOMContentLoaded and
load timings and the time until the network went idle.

Without arguments it starts an interactive prompt. With a URL it behaves
like "loadsum analyze <url>".`,
	Version:       Version,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runRoot,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&Debug, "debug", false, "Enable verbose debug output")
	flags.BoolVar(&JSONOutput, "json", false, "Output in JSON format (default is text)")
	flags.BoolVar(&NoColor, "no-color", false, "Disable color output")
	flags.StringVar(&configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	flags.StringVar(&chromePath, "chrome", "", "Chrome executable (overrides LOADSUM_CHROME)")
	flags.BoolVar(&headless, "headless", true, "Run Chrome headless")
	flags.DurationVar(&idleFlag, "idle", config.DefaultIdleThreshold, "Network quiet time that ends a load")
	flags.DurationVar(&pollFlag, "poll", config.DefaultPollInterval, "Idle check interval")
	flags.DurationVar(&maxWaitFlag, "max-wait", config.DefaultMaxWait, "Give up on a page after this long (0 waits forever)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, off")
	rootCmd.SetVersionTemplate(`loadsum version {{.Version}}
`)
}

func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return runAnalyze(cmd, args)
	}
	return runShell(cmd, args)
}

// Execute runs the root command.
// Supports command abbreviation via unique prefix matching.
func Execute() error {
	args := os.Args[1:]
	if len(args) > 0 {
		if expanded := tryExpandCommand(args[0]); expanded != "" {
			args[0] = expanded
			rootCmd.SetArgs(args)
		}
	}
	return rootCmd.Execute()
}

// tryExpandCommand attempts to expand a command abbreviation.
// Returns the expanded command if exactly one match is found, empty string otherwise.
func tryExpandCommand(prefix string) string {
	var commands []string
	for _, cmd := range rootCmd.Commands() {
		commands = append(commands, cmd.Name())
	}

	var matches []string
	for _, cmd := range commands {
		if cmd == prefix {
			return ""
		}
		if len(prefix) < len(cmd) && cmd[:len(prefix)] == prefix {
			matches = append(matches, cmd)
		}
	}

	if len(matches) == 1 {
		return matches[0]
	}
	return ""
}

// loadConfig resolves the config file and environment, then applies any
// flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("chrome") {
		cfg.Chrome = chromePath
	}
	if flags.Changed("headless") {
		cfg.Headless = headless
	}
	if flags.Changed("idle") {
		cfg.IdleThreshold = idleFlag
	}
	if flags.Changed("poll") {
		cfg.PollInterval = pollFlag
	}
	if flags.Changed("max-wait") {
		cfg.MaxWait = maxWaitFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, cfg.Validate()
}

// newLogger writes to stderr so stdout stays clean for results.
func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(cfg.LogLevel, os.Stderr)
}

// printedError marks an error whose message has already been written.
type printedError struct {
	msg string
}

func (e *printedError) Error() string { return e.msg }

// IsPrintedError reports whether err was already shown to the user.
func IsPrintedError(err error) bool {
	var p *printedError
	return errors.As(err, &p)
}

// isStdoutTTY returns true if stdout is a terminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// outputJSON writes a JSON response to the given writer.
// Pretty prints if stdout is a TTY, compact otherwise.
func outputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if isStdoutTTY() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

// outputSuccess writes the JSON success envelope to stdout. Text output
// is written by each command.
func outputSuccess(data any) error {
	return outputJSON(os.Stdout, map[string]any{
		"ok":   true,
		"data": data,
	})
}

// outputError writes an error response to stderr and returns an error.
// Uses text format by default, JSON if --json flag is set.
func outputError(msg string) error {
	if JSONOutput {
		resp := map[string]any{
			"ok":    false,
			"error": msg,
		}
		outputJSON(os.Stderr, resp)
	} else {
		if shouldUseColor() {
			color.New(color.FgRed).Fprint(os.Stderr, "Error:")
			fmt.Fprintf(os.Stderr, " %s\n", msg)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
	}
	return &printedError{msg: msg}
}

// shouldUseColor determines if color output should be used based on flags and environment.
func shouldUseColor() bool {
	if JSONOutput {
		return false
	}
	if NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
