// Package analyzer loads a page in a fresh browser session and measures it.
//
// A run opens an isolated page, clears what storage it can, navigates,
// waits until the network has been quiet for the idle threshold and then
// reads navigation and resource timing from the page.
package analyzer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/grantcarthew/loadsum/internal/session"
	"github.com/rs/zerolog"
)

const (
	DefaultIdleThreshold = 1500 * time.Millisecond
	DefaultPollInterval  = 50 * time.Millisecond
)

// Page is the browser surface a run needs.
type Page interface {
	ClearCacheStorage(ctx context.Context) error
	OnRequestFinished(fn func(session.Finished))
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expression string, out any) error
	Close() error
}

// Opener provides a fresh page for each run.
type Opener interface {
	Open(ctx context.Context) (Page, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Page, error)

func (f OpenerFunc) Open(ctx context.Context) (Page, error) { return f(ctx) }

// Chrome returns an Opener that launches a new browser per run.
func Chrome(opts session.Options) Opener {
	return OpenerFunc(func(ctx context.Context) (Page, error) {
		s, err := session.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Options tunes a run. Zero values take the defaults.
type Options struct {
	IdleThreshold time.Duration
	PollInterval  time.Duration
	// MaxWait bounds a whole run. Zero means no bound.
	MaxWait time.Duration
	Clock   Clock
	Log     zerolog.Logger
}

// Result is the outcome of one successful run.
type Result struct {
	URL              string
	Requests         int
	TransferredBytes int64
	DecodedBytes     int64
	// DOMContentLoaded and Load are milliseconds from navigation start.
	DOMContentLoaded float64
	Load             float64
	Completion       time.Duration
}

// Analyzer runs page-load analyses.
type Analyzer struct {
	opener Opener
	opts   Options
}

// New returns an Analyzer that gets its pages from opener.
func New(opener Opener, opts Options) *Analyzer {
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Analyzer{opener: opener, opts: opts}
}

// Analyze measures url. Fatal failures are *Error. The page is closed
// before Analyze returns on every path.
func (a *Analyzer) Analyze(ctx context.Context, url string) (*Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}

	if a.opts.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.MaxWait)
		defer cancel()
	}

	log := a.opts.Log.With().Str("url", url).Logger()
	fail := func(stage Stage, err error) (*Result, error) {
		return nil, &Error{Stage: stage, URL: url, Err: err}
	}

	page, err := a.opener.Open(ctx)
	if err != nil {
		return fail(StageOpen, err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.Warn().Err(&CleanupError{Op: "close session", Err: closeErr}).Msg("session teardown failed")
		}
	}()

	if err := page.ClearCacheStorage(ctx); err != nil {
		// about:blank has no Cache Storage; failures here are expected.
		log.Debug().Err(&CleanupError{Op: "clear cache storage", Err: err}).Send()
	}
	if ctx.Err() != nil {
		return fail(StageOpen, ctx.Err())
	}

	clock := a.opts.Clock
	track := newTracker(clock.Now())
	page.OnRequestFinished(func(f session.Finished) {
		track.add(RequestRecord{
			RequestID:    f.RequestID,
			EncodedBytes: f.EncodedBytes,
			FinishedAt:   clock.Now(),
		})
	})

	log.Debug().Msg("navigating")
	if err := page.Navigate(ctx, url); err != nil {
		return fail(StageNavigate, err)
	}

	if err := waitIdle(ctx, clock, track, a.opts.IdleThreshold, a.opts.PollInterval); err != nil {
		return fail(StageIdle, err)
	}
	log.Debug().Int("requests", track.count()).Msg("network idle")

	var nav NavigationTiming
	if err := page.Evaluate(ctx, navigationTimingScript, &nav); err != nil {
		return fail(StageMetrics, err)
	}
	var resources []ResourceEntry
	if err := page.Evaluate(ctx, resourceTimingScript, &resources); err != nil {
		return fail(StageMetrics, err)
	}
	transferred, decoded := sumSizes(resources)

	result := &Result{
		URL:              url,
		Requests:         track.count(),
		TransferredBytes: transferred,
		DecodedBytes:     decoded,
		DOMContentLoaded: nav.DOMContentLoadedEventEnd,
		Load:             nav.LoadEventEnd,
		Completion:       track.completion(),
	}
	log.Info().
		Int("requests", result.Requests).
		Int64("transferred", result.TransferredBytes).
		Int64("decoded", result.DecodedBytes).
		Dur("completion", result.Completion).
		Msg("analysis complete")
	return result, nil
}

// Cancelled reports whether err came from the run's context being
// cancelled rather than from the page or browser.
func Cancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
