// Package metrics turns collector events into Prometheus metrics. Each
// collector run is a short-lived process, so metrics are written to a
// node_exporter textfile rather than served.
package metrics

import (
	"time"

	"github.com/chrisconley/auditor-collector/internal/infra"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	staged     prometheus.Counter
	deliveries *prometheus.CounterVec
	pending    prometheus.Gauge
	lastRun    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.staged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auditor_collector",
		Name:      "records_staged_total",
		Help:      "Records written to the local staging store",
	})
	m.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auditor_collector",
		Name:      "deliveries_total",
		Help:      "Delivery attempts by outcome",
	}, []string{"outcome"})
	m.pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "auditor_collector",
		Name:      "staged_records",
		Help:      "Records left in the staging store after the last run, flagged ones included",
	})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "auditor_collector",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last collector run",
	})
	m.registry.MustRegister(m.staged, m.deliveries, m.pending, m.lastRun)

	for _, outcome := range []string{"acknowledged", "rejected", "unreachable", "corrupt"} {
		m.deliveries.WithLabelValues(outcome)
	}
	return m
}

// Subscribe feeds the metrics from the collector's event bus.
func (m *Metrics) Subscribe(bus *infra.Bus) {
	bus.Subscribe(infra.RecordStaged, func(infra.Event) { m.staged.Inc() })
	bus.Subscribe(infra.RecordAcknowledged, func(infra.Event) { m.deliveries.WithLabelValues("acknowledged").Inc() })
	bus.Subscribe(infra.RecordRejected, func(infra.Event) { m.deliveries.WithLabelValues("rejected").Inc() })
	bus.Subscribe(infra.RecordDeferred, func(infra.Event) { m.deliveries.WithLabelValues("unreachable").Inc() })
	bus.Subscribe(infra.RecordCorrupt, func(infra.Event) { m.deliveries.WithLabelValues("corrupt").Inc() })
}

func (m *Metrics) SetStagedRecords(n int) {
	m.pending.Set(float64(n))
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile stamps the run time and writes all metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	m.lastRun.Set(float64(time.Now().Unix()))
	return prometheus.WriteToTextfile(path, m.registry)
}
