// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state, reconnect and heartbeat-timeout counts
//   - Inbound frame rates by kind, plus dropped-frame counts
//   - Message completion/failure rates
//   - Request outcomes from the queue
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionState   prometheus.Gauge
	ReconnectsTotal   prometheus.Counter
	HeartbeatTimeouts prometheus.Counter

	FramesTotal        *prometheus.CounterVec
	FramesDroppedTotal prometheus.Counter

	MessagesCompleted prometheus.Counter
	MessagesFailed    prometheus.Counter

	RequestsTotal *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamline",
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected, 1=connecting, 2=connected).",
		}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "reconnects_total",
			Help:      "Connection attempts after the initial connect.",
		}),
		HeartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "heartbeat_timeouts_total",
			Help:      "Connections force-closed for missing a liveness reply.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "frames_total",
			Help:      "Inbound frames by kind.",
		}, []string{"kind"}),
		FramesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped as malformed or unknown.",
		}),
		MessagesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "messages_completed_total",
			Help:      "Streamed messages that ended normally.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "messages_failed_total",
			Help:      "Streamed messages terminated by an error frame.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "requests_total",
			Help:      "Outbound requests by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.ConnectionState,
		m.ReconnectsTotal,
		m.HeartbeatTimeouts,
		m.FramesTotal,
		m.FramesDroppedTotal,
		m.MessagesCompleted,
		m.MessagesFailed,
		m.RequestsTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
