// File: internal/metrics/recorder.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iyunix/go-rigadvisor/internal/services/suggestion"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

const namespace = "rigadvisor"

// Recorder exports attempt and suggestion counters on its own registry.
// It implements transport.Observer and suggestion.Observer.
type Recorder struct {
	registry *prometheus.Registry

	attempts           *prometheus.CounterVec
	attemptDuration    *prometheus.HistogramVec
	backoffWait        prometheus.Histogram
	suggestions        *prometheus.CounterVec
	suggestionDuration *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "attempts_total",
			Help:      "Generation API attempts by outcome and error type.",
		}, []string{"outcome", "error_type"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "attempt_duration_seconds",
			Help:      "Time spent on a single attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"outcome"}),
		backoffWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "backoff_seconds",
			Help:      "Planned waits between attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suggestion",
			Name:      "calls_total",
			Help:      "Suggestion calls by plan and result.",
		}, []string{"plan", "result"}),
		suggestionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "suggestion",
			Name:      "duration_seconds",
			Help:      "End-to-end suggestion latency, waits included.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"plan"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.attempts,
		r.attemptDuration,
		r.backoffWait,
		r.suggestions,
		r.suggestionDuration,
	)
	return r
}

func (r *Recorder) ObserveAttempt(a transport.Attempt) {
	errType := string(a.ErrorType)
	if errType == "" {
		errType = "none"
	}
	r.attempts.WithLabelValues(string(a.Outcome), errType).Inc()
	r.attemptDuration.WithLabelValues(string(a.Outcome)).Observe(a.Elapsed.Seconds())
	if a.Backoff > 0 {
		r.backoffWait.Observe(a.Backoff.Seconds())
	}
}

func (r *Recorder) ObserveSuggestion(planID string, kind suggestion.Kind, elapsed time.Duration) {
	result := "succeeded"
	if kind != "" {
		result = string(kind)
	}
	r.suggestions.WithLabelValues(planID, result).Inc()
	r.suggestionDuration.WithLabelValues(planID).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
