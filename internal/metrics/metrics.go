// Package metrics exposes run statistics in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "loadsum"

// Outcome labels for RunsTotal.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeCancelled  = "cancelled"
	OutcomeSuperseded = "superseded"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	ActiveRuns  prometheus.Gauge
	RunsTotal   *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	RunDuration prometheus.Histogram
	Requests    prometheus.Histogram
	Transferred prometheus.Histogram
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Analyses currently in flight",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished analyses by outcome",
		}, []string{"outcome"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed analyses by stage",
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of an analysis including browser start and teardown",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 60, 120},
		}),
		Requests: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_requests",
			Help:      "Requests finished per analyzed page",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Transferred: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_transferred_bytes",
			Help:      "Bytes transferred per analyzed page",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 2, 10),
		}),
	}
	r.MustRegister(m.ActiveRuns, m.RunsTotal, m.Failures, m.RunDuration, m.Requests, m.Transferred)
	return m
}

// RunStarted marks a run in flight.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.ActiveRuns.Inc()
}

// RunFinished records a finished run. stage is only used for failures.
func (m *Metrics) RunFinished(outcome, stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
	m.RunsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeFailure {
		if stage == "" {
			stage = "unknown"
		}
		m.Failures.WithLabelValues(stage).Inc()
	}
	m.RunDuration.Observe(elapsed.Seconds())
}

// PageObserved records the size of a successfully analyzed page.
func (m *Metrics) PageObserved(requests int, transferred int64) {
	if m == nil {
		return
	}
	m.Requests.Observe(float64(requests))
	m.Transferred.Observe(float64(transferred))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
