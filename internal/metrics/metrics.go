// Package metrics holds the service's Prometheus instruments. Metrics are
// registered on an injected Registerer so tests can use a private registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "livesync"

// Metrics holds every instrument the service exports
type Metrics struct {
	ActiveClients     prometheus.Gauge
	MessagesSent      *prometheus.CounterVec // by message type
	MessagesDropped   *prometheus.CounterVec // by message type
	PollCycles        *prometheus.CounterVec // by sport, result
	SyncRequests      *prometheus.CounterVec // by result
	ConflictsDetected prometheus.Counter
}

// New creates and registers the service metrics
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "active_clients",
			Help:      "Number of currently connected WebSocket clients.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_sent_total",
			Help:      "Total messages delivered to client send buffers, by type.",
		}, []string{"type"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_dropped_total",
			Help:      "Total messages dropped because a client buffer was full, by type.",
		}, []string{"type"}),
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Total poll cycles, by sport and result (changed, unchanged, error, skipped).",
		}, []string{"sport", "result"}),
		SyncRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "sync_requests_total",
			Help:      "Total bet slip sync requests, by result (accepted, rejected).",
		}, []string{"result"}),
		ConflictsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "conflicts_detected_total",
			Help:      "Total cross-device edit conflicts recorded.",
		}),
	}

	reg.MustRegister(
		m.ActiveClients,
		m.MessagesSent,
		m.MessagesDropped,
		m.PollCycles,
		m.SyncRequests,
		m.ConflictsDetected,
	)
	return m
}
