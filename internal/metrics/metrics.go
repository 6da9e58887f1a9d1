// Package metrics exposes adapter operation metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/redbco/redb-esadapter/internal/datastore"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

const (
	namespace = "redb"
	subsystem = "esadapter"
)

// Metrics records datastore operation outcomes.
// It implements datastore.Recorder and prometheus.Collector.
type Metrics struct {
	Operations *prometheus.CounterVec
	Durations  *prometheus.HistogramVec
	Datastores prometheus.Gauge
}

// New creates operation metrics. They must be registered before they are scraped.
func New() *Metrics {
	return &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Total number of datastore operations.",
			},
			[]string{"datastore", "collection", "operation", "result"},
		),
		Durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Datastore operation latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"datastore", "operation"},
		),
		Datastores: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "datastores",
				Help:      "Number of registered datastores.",
			},
		),
	}
}

// ObserveOperation counts one operation. The result label is
// adapter.ErrorCode of err, "ok" on success.
func (m *Metrics) ObserveOperation(identity, collection string, op dbcapabilities.Operation, elapsed time.Duration, err error) {
	m.Operations.WithLabelValues(identity, collection, string(op), adapter.ErrorCode(err)).Inc()
	m.Durations.WithLabelValues(identity, string(op)).Observe(elapsed.Seconds())
}

// SetDatastores sets the registered datastore gauge.
func (m *Metrics) SetDatastores(n int) {
	m.Datastores.Set(float64(n))
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.Durations.Describe(ch)
	m.Datastores.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.Durations.Collect(ch)
	m.Datastores.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*Metrics)(nil)
	_ datastore.Recorder   = (*Metrics)(nil)
)
