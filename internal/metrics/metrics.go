// Package metrics provides Prometheus metrics for the Mestre backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal          *prometheus.CounterVec
	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	GenerationsInFlight prometheus.Gauge
	SessionsActive      prometheus.Gauge
	CredentialResets    prometheus.Counter
	RecognitionRestarts prometheus.Counter
	ServerUptimeSeconds prometheus.GaugeFunc
	serverStartTime     time.Time
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:        reg,
		serverStartTime: time.Now(),
	}

	m.TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mestre_turns_total",
			Help: "Conversation turns by outcome",
		},
		[]string{"outcome"},
	)

	m.GenerationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mestre_generations_total",
			Help: "Generation calls by classified outcome",
		},
		[]string{"outcome"},
	)

	m.GenerationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mestre_generation_duration_seconds",
			Help:    "Latency of generation calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"outcome"},
	)

	m.GenerationsInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Name: "mestre_generations_in_flight",
		Help: "Generation calls currently awaiting the upstream",
	})

	m.SessionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "mestre_sessions_active",
		Help: "Sessions currently held in memory",
	})

	m.CredentialResets = factory.NewCounter(prometheus.CounterOpts{
		Name: "mestre_credential_resets_total",
		Help: "Credentials cleared after a re-authentication-required failure",
	})

	m.RecognitionRestarts = factory.NewCounter(prometheus.CounterOpts{
		Name: "mestre_recognition_restarts_total",
		Help: "Speech recognizer restarts after a transient end event",
	})

	m.ServerUptimeSeconds = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mestre_uptime_seconds",
		Help: "Seconds since server start",
	}, func() float64 {
		return time.Since(m.serverStartTime).Seconds()
	})

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTurn(outcome string) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GenerationStarted() {
	m.GenerationsInFlight.Inc()
}

func (m *Metrics) ObserveGeneration(outcome string, d time.Duration) {
	m.GenerationsInFlight.Dec()
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
	m.GenerationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) SetActiveSessions(n int) {
	m.SessionsActive.Set(float64(n))
}

func (m *Metrics) CredentialReset() {
	m.CredentialResets.Inc()
}

func (m *Metrics) RecognitionRestarted() {
	m.RecognitionRestarts.Inc()
}
