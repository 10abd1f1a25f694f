package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grantcarthew/loadsum/internal/cli/format"
	"github.com/grantcarthew/loadsum/internal/metrics"
	"github.com/grantcarthew/loadsum/internal/runner"
	"github.com/grantcarthew/loadsum/internal/shell"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive prompt (default when no URL is given)",
	Long: `Reads URLs from a prompt and analyzes each one. Entering a new URL cancels the
analysis in progress. Type "help" at the prompt for shell commands.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

var metricsAddr string

func init() {
	shellCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError(err.Error())
	}
	if f := cmd.Flags().Lookup("metrics-addr"); f != nil && f.Changed {
		cfg.MetricsAddr = metricsAddr
	}

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	served := make(chan struct{})
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		go func() {
			defer close(served)
			if err := m.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server stopped")
			}
		}()
	} else {
		close(served)
	}

	interactive := shell.IsStdinTTY()
	display := shell.NewTerminal(os.Stdout, format.NewOutputOptions(false, NoColor), interactive)
	dispatcher := runner.New(analyzerFactory.NewAnalyzer(cfg, log), display, runner.Options{
		Log:     log,
		Metrics: m,
	})

	repl := shell.New(dispatcher, os.Stdout, interactive)
	replErr := make(chan error, 1)
	go func() { replErr <- repl.Run() }()

	select {
	case err = <-replErr:
	case <-ctx.Done():
	}

	dispatcher.Close()
	stop()
	<-served

	if err != nil {
		return outputError(err.Error())
	}
	return nil
}
