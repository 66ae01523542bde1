package kernel

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the kernel's Prometheus collectors. Constructed
// unregistered so tests can build routers freely; cmd/kernel registers
// against the default registerer.
type Metrics struct {
	ConnectionsActive   prometheus.Gauge
	NodesRegistered     prometheus.Gauge
	MessagesRouted      *prometheus.CounterVec
	BroadcastDeliveries prometheus.Counter
	BroadcastFailures   prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "deltanet",
			Subsystem: "kernel",
			Name:      "connections_active",
			Help:      "Open websocket connections",
		}),
		NodesRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "deltanet",
			Subsystem: "kernel",
			Name:      "nodes_registered",
			Help:      "Currently registered node identities",
		}),
		MessagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deltanet",
			Subsystem: "kernel",
			Name:      "messages_routed_total",
			Help:      "Envelopes handled by outcome",
		}, []string{"outcome"}),
		BroadcastDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deltanet",
			Subsystem: "kernel",
			Name:      "broadcast_deliveries_total",
			Help:      "Per-recipient broadcast deliveries that succeeded",
		}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deltanet",
			Subsystem: "kernel",
			Name:      "broadcast_failures_total",
			Help:      "Per-recipient broadcast deliveries that failed",
		}),
	}
}

// Register attaches all collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ConnectionsActive,
		m.NodesRegistered,
		m.MessagesRouted,
		m.BroadcastDeliveries,
		m.BroadcastFailures,
	)
}

// Routing outcomes for the messages_routed_total counter.
const (
	outcomeRegistered = "registered"
	outcomeDirected   = "directed"
	outcomeBroadcast  = "broadcast"
	outcomeError      = "error"
	outcomeDropped    = "dropped"
)
