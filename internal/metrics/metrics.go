// Package metrics exposes Prometheus collectors for query compilation and
// attribute registry maintenance.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name unless configured otherwise.
const DefaultNamespace = "searchql"

// Compile outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the searchql collectors. A nil *Metrics records nothing.
type Metrics struct {
	CompileTotal         *prometheus.CounterVec
	CompileDuration      prometheus.Histogram
	RegistryRebuildTotal *prometheus.CounterVec
	RegistryKeys         *prometheus.GaugeVec
	EventsTotal          *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		CompileTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compile_total",
				Help:      "Total number of query compilations",
			},
			[]string{"outcome", "stage"}, // stage: "" / "parse" / "build" / "snapshot"
		),
		CompileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Query compilation duration in seconds",
				Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
			},
		),
		RegistryRebuildTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_rebuild_total",
				Help:      "Total number of attribute registry snapshot rebuilds",
			},
			[]string{"outcome"},
		),
		RegistryKeys: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_keys",
				Help:      "Number of resolvable keys in the current snapshot",
			},
			[]string{"tenant"},
		),
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_events_total",
				Help:      "Attribute change events received",
			},
			[]string{"kind", "status"}, // status: "handled" / "invalid" / "failed"
		),
	}
}

// ObserveCompile records one compilation. stage is empty on success.
func (m *Metrics) ObserveCompile(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.CompileTotal.WithLabelValues(outcome, stage).Inc()
	m.CompileDuration.Observe(d.Seconds())
}

// ObserveRebuild implements attr.Observer.
func (m *Metrics) ObserveRebuild(tenant string, keys int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RegistryRebuildTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.RegistryRebuildTotal.WithLabelValues(OutcomeOK).Inc()
	m.RegistryKeys.WithLabelValues(tenant).Set(float64(keys))
}

// ObserveEvent records a received change event.
func (m *Metrics) ObserveEvent(kind, status string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind, status).Inc()
}
