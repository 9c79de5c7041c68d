// Package metrics exposes Prometheus collectors for conversation traffic.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"echo/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "echo"

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	registry *prometheus.Registry

	operations         *prometheus.CounterVec
	phaseDuration      *prometheus.HistogramVec
	activeSessions     prometheus.Gauge
	backgroundFailures *prometheus.CounterVec
	diaries            prometheus.Counter
}

// NewRecorder registers the collectors on a fresh registry, plus the Go and
// process collectors when withRuntime is set.
func NewRecorder(withRuntime bool) *Recorder {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r := &Recorder{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "operations_total",
			Help:      "Conversation operations by outcome.",
		}, []string{"op", "result"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "phase_duration_seconds",
			Help:      "Latency of transcription, model and synthesis calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"phase", "status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Conversations currently held in memory.",
		}),
		backgroundFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "failures_total",
			Help:      "Background tasks that returned an error or panicked.",
		}, []string{"task"}),
		diaries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diary",
			Name:      "saved_total",
			Help:      "Diary entries written.",
		}),
	}
	reg.MustRegister(r.operations, r.phaseDuration, r.activeSessions, r.backgroundFailures, r.diaries)
	return r
}

// Operation counts one start, message or end call. A nil err is "ok",
// otherwise the error kind.
func (r *Recorder) Operation(op string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(core.KindOf(err))
	}
	r.operations.WithLabelValues(op, result).Inc()
}

// ObservePhase records how long a collaborator call took.
func (r *Recorder) ObservePhase(phase core.Phase, d time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, core.ErrValidation) {
			status = "rejected"
		}
	}
	r.phaseDuration.WithLabelValues(string(phase), status).Observe(d.Seconds())
}

func (r *Recorder) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.activeSessions.Set(float64(n))
}

// BackgroundFailure matches runner.Runner's OnFailure signature.
func (r *Recorder) BackgroundFailure(task string, _ error) {
	if r == nil {
		return
	}
	r.backgroundFailures.WithLabelValues(task).Inc()
}

func (r *Recorder) DiarySaved() {
	if r == nil {
		return
	}
	r.diaries.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
