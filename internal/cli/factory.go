package cli

import (
	"github.com/grantcarthew/loadsum/internal/analyzer"
	"github.com/grantcarthew/loadsum/internal/browser"
	"github.com/grantcarthew/loadsum/internal/config"
	"github.com/grantcarthew/loadsum/internal/runner"
	"github.com/grantcarthew/loadsum/internal/session"
	"github.com/rs/zerolog"
)

// AnalyzerFactory builds the analyzer a command runs.
type AnalyzerFactory interface {
	NewAnalyzer(cfg config.Config, log zerolog.Logger) runner.Analyzer
}

// defaultFactory launches a real Chrome per analysis.
type defaultFactory struct{}

func (defaultFactory) NewAnalyzer(cfg config.Config, log zerolog.Logger) runner.Analyzer {
	opener := analyzer.Chrome(session.Options{
		Launch: launchOptions(cfg),
		Log:    log,
	})
	return analyzer.New(opener, analyzer.Options{
		IdleThreshold: cfg.IdleThreshold,
		PollInterval:  cfg.PollInterval,
		MaxWait:       cfg.MaxWait,
		Log:           log,
	})
}

func launchOptions(cfg config.Config) browser.LaunchOptions {
	return browser.LaunchOptions{
		Binary:       cfg.Chrome,
		Headless:     cfg.Headless,
		DisableCache: true,
		Args:         cfg.ChromeArgs,
	}
}

// analyzerFactory is the package-level factory, replaceable for testing.
var analyzerFactory AnalyzerFactory = defaultFactory{}

// SetAnalyzerFactory sets the analyzer factory (for testing).
func SetAnalyzerFactory(f AnalyzerFactory) {
	analyzerFactory = f
}

// ResetAnalyzerFactory resets to the default factory.
func ResetAnalyzerFactory() {
	analyzerFactory = defaultFactory{}
}
