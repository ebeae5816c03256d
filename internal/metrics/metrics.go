// Package metrics exposes Prometheus instrumentation for the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verte-zerg/swifttype/internal/model"
)

const namespace = "swifttype"

// Metrics holds the server collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	scoresSubmitted *prometheus.CounterVec
	scoreWPM        *prometheus.HistogramVec
	requestDuration *prometheus.HistogramVec
	wsClients       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scoresSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_submitted_total",
			Help:      "Accepted score submissions by duration bucket.",
		}, []string{"duration"}),
		scoreWPM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_wpm",
			Help:      "Distribution of submitted words per minute.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 100, 120, 150},
		}, []string{"duration"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Currently connected WebSocket clients.",
		}),
	}
	m.registry.MustRegister(
		m.scoresSubmitted,
		m.scoreWPM,
		m.requestDuration,
		m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveScore records an accepted score.
func (m *Metrics) ObserveScore(score model.Score) {
	d := strconv.Itoa(score.Duration)
	m.scoresSubmitted.WithLabelValues(d).Inc()
	m.scoreWPM.WithLabelValues(d).Observe(float64(score.WPM))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// SetWSClients sets the connected client gauge.
func (m *Metrics) SetWSClients(n int) {
	m.wsClients.Set(float64(n))
}
