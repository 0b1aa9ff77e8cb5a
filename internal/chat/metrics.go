package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the chat listener.
type Metrics struct {
	ConnectionsTotal prometheus.Counter
	ConnectionsOpen  prometheus.Gauge
	RequestsTotal    *prometheus.CounterVec
	PushesTotal      prometheus.Counter
}

// NewMetrics registers the chat collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat",
			Name:      "connections_total",
			Help:      "Accepted TCP connections.",
		}),
		ConnectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "parley",
			Subsystem: "chat",
			Name:      "connections_open",
			Help:      "Currently open connections.",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Requests handled, by verb.",
		}, []string{"verb"}),
		PushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "chat",
			Name:      "pushes_total",
			Help:      "Server-initiated push records written.",
		}),
	}
}
