// Package metrics records what the recompute pipeline does and measures the
// quality of simulated series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeComputeError    = "compute_error"
	OutcomeValidationError = "validation_error"
)

// Recorder holds the pipeline collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	triggers prometheus.Counter
	dropped  prometheus.Counter
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	tabs     prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		triggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erpsim",
			Name:      "triggers_total",
			Help:      "Coalesced recompute triggers received.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erpsim",
			Name:      "triggers_dropped_total",
			Help:      "Triggers dropped because a run was in flight.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erpsim",
			Name:      "runs_total",
			Help:      "Recomputes by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "erpsim",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one recompute, both engine calls included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		tabs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "erpsim",
			Name:      "tabs",
			Help:      "Open configuration tabs.",
		}),
	}
	r.registry.MustRegister(r.triggers, r.dropped, r.runs, r.duration, r.tabs)
	return r
}

func (r *Recorder) Trigger() {
	if r == nil {
		return
	}
	r.triggers.Inc()
}

func (r *Recorder) Dropped() {
	if r == nil {
		return
	}
	r.dropped.Inc()
}

// Run counts one finished recompute. Validation failures carry no duration.
func (r *Recorder) Run(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
	if outcome != OutcomeValidationError {
		r.duration.Observe(elapsed.Seconds())
	}
}

func (r *Recorder) Tabs(n int) {
	if r == nil {
		return
	}
	r.tabs.Set(float64(n))
}

// Registry exposes the collectors, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the collectors in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
