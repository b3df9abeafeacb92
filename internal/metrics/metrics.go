// Package metrics defines the forwarder's self-observability surface
// (spec.md SPEC_FULL.md §C10). It is deliberately a Prometheus exporter of
// the forwarder's own health, not a substitute for the InfluxDB pipeline
// the forwarder feeds — Grafana dashboards over the forwarded data remain
// out of scope (spec.md §OVERVIEW non-goal).
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the supervisor, breakers, and writer report
// against. A single Registry is constructed at startup and shared by
// reference, mirroring the teacher's shared-by-reference http.Client.
type Registry struct {
	CollectorErrors    *prometheus.CounterVec
	ShortCircuited     *prometheus.CounterVec
	WriterFailures     *prometheus.CounterVec
	PointsWritten       prometheus.Counter
	BreakerState       *prometheus.GaugeVec
	TickLoopRestarts   *prometheus.CounterVec
}

// New registers every metric against reg and returns the bundle.
func New(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		CollectorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiseg2_forwarder_collector_errors_total",
			Help: "Collector failures by collector id and error kind.",
		}, []string{"collector", "kind"}),
		ShortCircuited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiseg2_forwarder_breaker_short_circuited_total",
			Help: "Ticks skipped because a collector's breaker denied the call.",
		}, []string{"collector"}),
		WriterFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiseg2_forwarder_writer_failures_total",
			Help: "InfluxDB write failures by kind (transport/auth/payload).",
		}, []string{"kind"}),
		PointsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "aiseg2_forwarder_points_written_total",
			Help: "Points successfully handed to the InfluxDB writer.",
		}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aiseg2_forwarder_breaker_state",
			Help: "Current breaker state per collector (0=closed, 1=half_open, 2=open).",
		}, []string{"collector"}),
		TickLoopRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aiseg2_forwarder_tick_loop_restarts_total",
			Help: "Times a cadence tick loop was respawned after an unexpected termination.",
		}, []string{"cadence"}),
	}
}

// BreakerStateValue maps a breaker.State to the gauge value the spec's
// observability section expects (0=closed, 1=half_open, 2=open).
func BreakerStateValue(s fmt.Stringer) float64 {
	switch s.String() {
	case "closed":
		return 0
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
