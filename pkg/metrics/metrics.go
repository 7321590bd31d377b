// Package metrics exposes Prometheus counters for extraction runs. Watch
// mode serves them over /metrics; one-shot runs record into the same
// registry and simply never serve it.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes as reported on the runs counter.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Recorder aggregates counters for every run of one process. Each Recorder
// owns its registry so repeated construction never panics on duplicate
// registration.
type Recorder struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	records  *prometheus.CounterVec
	duration prometheus.Histogram
	gross    prometheus.Gauge
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	return &Recorder{
		registry: reg,
		runs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "extraction_runs_total",
			Help: "Extraction runs by outcome (ok, partial, failed).",
		}, []string{"outcome"}),
		records: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "extraction_records_total",
			Help: "Extracted records by completeness.",
		}, []string{"state"}),
		duration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "extraction_run_duration_seconds",
			Help:    "Wall time of one extraction run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		gross: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "extraction_gross_total_brl",
			Help: "Gross total of the most recent finished run, in BRL.",
		}),
	}
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(outcome string, complete, incomplete int, grossBRL float64, elapsed time.Duration) {
	r.runs.WithLabelValues(outcome).Inc()
	r.records.WithLabelValues("complete").Add(float64(complete))
	r.records.WithLabelValues("incomplete").Add(float64(incomplete))
	r.duration.Observe(elapsed.Seconds())
	r.gross.Set(grossBRL)
}

// ObserveFailure records a run that produced no snapshot at all.
func (r *Recorder) ObserveFailure(elapsed time.Duration) {
	r.runs.WithLabelValues(OutcomeFailed).Inc()
	r.duration.Observe(elapsed.Seconds())
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve blocks serving /metrics on the given port.
func (r *Recorder) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
