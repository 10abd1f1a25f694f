package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/grantcarthew/loadsum/internal/analyzer"
	"github.com/grantcarthew/loadsum/internal/cli/format"
	"github.com/grantcarthew/loadsum/internal/report"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze one URL and print its summary",
	Long: `Loads the URL in a fresh Chrome with caching disabled, waits for the network
to go idle and prints the page-load summary. Exits non-zero if the page could
not be analyzed.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError(err.Error())
	}

	url := strings.TrimSpace(args[0])
	if url == "" {
		return outputError(analyzer.ErrEmptyURL.Error())
	}

	log := newLogger(cfg)
	runID := uuid.NewString()
	log = log.With().Str("run", runID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !JSONOutput && isStdoutTTY() {
		fmt.Fprintln(os.Stderr, report.Loading)
	}

	result, err := analyzerFactory.NewAnalyzer(cfg, log).Analyze(ctx, url)
	if err != nil {
		log.Debug().Err(err).Msg("analysis failed")
		return outputError(report.Outcome(nil, err))
	}

	if JSONOutput {
		return outputSuccess(format.NewSummaryData(runID, result))
	}
	return format.Summary(os.Stdout, result, format.NewOutputOptions(JSONOutput, NoColor))
}
