package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatfabric_connections_active",
			Help: "Currently registered WebSocket connections",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatfabric_auth_failures_total",
			Help: "Rejected connection handshakes",
		},
	)

	// Relay metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatfabric_messages_sent_total",
			Help: "Messages accepted and published",
		},
		[]string{"chat_type"}, // "group" or "private"
	)

	EventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatfabric_event_errors_total",
			Help: "Client events rejected with an ERROR response",
		},
		[]string{"kind"},
	)

	// Fan-out metrics
	BridgeDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatfabric_bridge_deliveries_total",
			Help: "Frames delivered to local connections by the broker bridge",
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatfabric_cache_hits_total",
			Help: "History reads served from the recency cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatfabric_cache_misses_total",
			Help: "History reads that fell back to the store",
		},
	)
)
