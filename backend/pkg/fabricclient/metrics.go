package fabricclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the gateway cache.
type Metrics struct {
	ConnectionsCreated prometheus.Counter
	CacheHits          prometheus.Counter
	ConnectionFailures *prometheus.CounterVec
	CachedConnections  prometheus.Gauge
}

// NewMetrics creates the gateway metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fabric",
			Subsystem: "gateway",
			Name:      "connections_created_total",
			Help:      "Gateway connections established and cached.",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fabric",
			Subsystem: "gateway",
			Name:      "cache_hits_total",
			Help:      "Connection requests served from the cache.",
		}),
		ConnectionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabric",
			Subsystem: "gateway",
			Name:      "connection_failures_total",
			Help:      "Failed attempts to create a gateway connection, by error kind.",
		}, []string{"kind"}),
		CachedConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "fabric",
			Subsystem: "gateway",
			Name:      "cached_connections",
			Help:      "Gateway connections currently held in the cache.",
		}),
	}
}
