// Package metrics records standup run metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives run lifecycle measurements.
type Recorder interface {
	RunFinished(status string)
	ReplyCollected(outcome string)
	CollectionDuration(d time.Duration)
	Escalation(result string)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RunFinished(string)               {}
func (Noop) ReplyCollected(string)            {}
func (Noop) CollectionDuration(time.Duration) {}
func (Noop) Escalation(string)                {}

// PrometheusRecorder is a Prometheus implementation of Recorder with its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	repliesTotal       *prometheus.CounterVec
	collectionDuration prometheus.Histogram
	escalationsTotal   *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder and registers the Go and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "standup_runs_total",
			Help: "Total number of finished standup runs by status.",
		}, []string{"status"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "standup_replies_total",
			Help: "Total participant replies by outcome.",
		}, []string{"outcome"}),
		collectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "standup_collection_duration_seconds",
			Help:    "Time spent collecting replies for one run.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "standup_escalations_total",
			Help: "Escalation decisions by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(r.runsTotal)
	registry.MustRegister(r.repliesTotal)
	registry.MustRegister(r.collectionDuration)
	registry.MustRegister(r.escalationsTotal)
	return r
}

// Registry returns the Prometheus registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) RunFinished(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) ReplyCollected(outcome string) {
	r.repliesTotal.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) CollectionDuration(d time.Duration) {
	r.collectionDuration.Observe(d.Seconds())
}

func (r *PrometheusRecorder) Escalation(result string) {
	r.escalationsTotal.WithLabelValues(result).Inc()
}
