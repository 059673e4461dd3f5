// Package metricsobs exposes prometheus gauges and counters for the
// deploy, fleet, and Kubernetes cluster subsystems, grounded on the Prometheus usage
// pattern in crossplane's internal/engine/engine_metrics.go.
package metricsobs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this process exports.
type Registry struct {
	DeploymentsTotal   *prometheus.CounterVec
	DeploymentFailures *prometheus.CounterVec
	NodesOnline        prometheus.Gauge
	ClustersRegistered prometheus.Gauge
	HeartbeatsReceived prometheus.Counter
}

// New registers every metric against a dedicated registry rather than the
// global default, so a process can run more than one Registry in tests
// without a "duplicate metrics collector registration" panic.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	r := &Registry{
		DeploymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "deploy",
			Name:      "operations_total",
			Help:      "Total number of deploy operations attempted, by backend.",
		}, []string{"backend"}),

		DeploymentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "deploy",
			Name:      "operation_failures_total",
			Help:      "Total number of deploy operations that returned an error, by backend.",
		}, []string{"backend"}),

		NodesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem: "fleet",
			Name:      "nodes_online",
			Help:      "Number of u-nodes currently reporting an online status.",
		}),

		ClustersRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem: "kubernetes",
			Name:      "clusters_registered",
			Help:      "Number of Kubernetes clusters currently registered.",
		}),

		HeartbeatsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "fleet",
			Name:      "heartbeats_received_total",
			Help:      "Total number of heartbeat requests accepted from u-nodes.",
		}),
	}

	reg.MustRegister(r.DeploymentsTotal, r.DeploymentFailures, r.NodesOnline, r.ClustersRegistered, r.HeartbeatsReceived)
	return r, reg
}

// Handler serves the registered metrics in the Prometheus exposition
// format, for mounting next to the health endpoints.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
