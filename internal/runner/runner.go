// Package runner schedules analyses for an interactive front end.
//
// A Dispatcher runs at most one analysis at a time. Submitting a new URL
// cancels the one in flight, and only the newest run may write to the
// display.
package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grantcarthew/loadsum/internal/analyzer"
	"github.com/grantcarthew/loadsum/internal/metrics"
	"github.com/grantcarthew/loadsum/internal/report"
	"github.com/rs/zerolog"
)

// Display shows one block of text at a time, replacing the previous one.
type Display interface {
	SetText(text string)
}

// Analyzer measures a single URL.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (*analyzer.Result, error)
}

// Run is a finished analysis.
type Run struct {
	ID       string
	URL      string
	Result   *analyzer.Result
	Err      error
	Started  time.Time
	Finished time.Time
}

// Options configures a Dispatcher.
type Options struct {
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// Dispatcher owns the background analyses.
type Dispatcher struct {
	analyzer Analyzer
	display  Display
	log      zerolog.Logger
	metrics  *metrics.Metrics

	root       context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	currentID  string
	last       *Run
	closed     bool
}

// New returns a Dispatcher and shows the placeholder on display.
func New(a Analyzer, display Display, opts Options) *Dispatcher {
	root, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		analyzer:   a,
		display:    display,
		log:        opts.Log,
		metrics:    opts.Metrics,
		root:       root,
		rootCancel: cancel,
	}
	display.SetText(report.Placeholder)
	return d
}

// Submit starts analyzing input after trimming it. Blank input and a
// closed dispatcher start nothing and return false.
func (d *Dispatcher) Submit(input string) (id string, ok bool) {
	url := strings.TrimSpace(input)
	if url == "" {
		return "", false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", false
	}

	if d.cancel != nil {
		d.log.Debug().Str("run", d.currentID).Msg("superseding run")
		d.cancel()
	}

	d.generation++
	gen := d.generation
	ctx, cancel := context.WithCancel(d.root)
	id = uuid.NewString()
	d.cancel = cancel
	d.currentID = id
	d.display.SetText(report.Loading)

	d.wg.Add(1)
	go d.run(ctx, cancel, gen, id, url)
	return id, true
}

// Cancel stops the run in flight. It reports whether there was one.
func (d *Dispatcher) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel == nil {
		return false
	}
	d.cancel()
	return true
}

// Running reports whether an analysis is in flight.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Last returns the most recent run that reached the display.
func (d *Dispatcher) Last() (Run, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Run{}, false
	}
	return *d.last, true
}

// Wait blocks until no run is in flight.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels every run and waits for their browsers to shut down.
// The display is not written after Close returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.rootCancel()
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, cancel context.CancelFunc, gen uint64, id, url string) {
	defer d.wg.Done()
	defer cancel()

	log := d.log.With().Str("run", id).Logger()
	started := time.Now()
	d.metrics.RunStarted()
	log.Debug().Str("url", url).Msg("run started")

	result, err := d.analyzer.Analyze(ctx, url)
	run := Run{ID: id, URL: url, Result: result, Err: err, Started: started, Finished: time.Now()}
	elapsed := run.Finished.Sub(started)

	d.mu.Lock()
	current := gen == d.generation && !d.closed
	if gen == d.generation {
		d.cancel = nil
	}
	if !current {
		d.mu.Unlock()
		d.metrics.RunFinished(metrics.OutcomeSuperseded, "", elapsed)
		log.Debug().Err(err).Msg("stale run discarded")
		return
	}

	d.display.SetText(report.Outcome(result, err))
	d.last = &run
	d.mu.Unlock()

	outcome, stage := metrics.OutcomeSuccess, ""
	switch {
	case err == nil:
		d.metrics.PageObserved(result.Requests, result.TransferredBytes)
	case analyzer.Cancelled(err):
		outcome = metrics.OutcomeCancelled
	default:
		outcome = metrics.OutcomeFailure
		stage = failureStage(err)
	}
	d.metrics.RunFinished(outcome, stage, elapsed)
	if err != nil {
		log.Warn().Err(err).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("run failed")
	} else {
		log.Debug().Dur("elapsed", elapsed).Msg("run finished")
	}
}

func failureStage(err error) string {
	var aerr *analyzer.Error
	if errors.As(err, &aerr) {
		return string(aerr.Stage)
	}
	return ""
}
