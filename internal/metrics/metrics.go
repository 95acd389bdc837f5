// Package metrics exposes store operation metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-idm-mongo/pkg/store"
)

// Collector records store operations. It implements store.Observer.
type Collector struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	schemaIndexes prometheus.Gauge
}

var _ store.Observer = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idstore_operations_total",
			Help: "Store operations by store, operation and outcome.",
		}, []string{"store", "op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idstore_operation_duration_seconds",
			Help:    "Store operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"store", "op"}),
		schemaIndexes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "idstore_schema_indexes",
			Help: "Indexes ensured by the last schema initialization.",
		}),
	}

	reg.MustRegister(c.operations, c.latency, c.schemaIndexes)
	return c
}

// ObserveOperation records one finished store operation.
func (c *Collector) ObserveOperation(storeName, op string, outcome store.Outcome, elapsed time.Duration) {
	c.operations.WithLabelValues(storeName, op, string(outcome)).Inc()
	c.latency.WithLabelValues(storeName, op).Observe(elapsed.Seconds())
}

// SetSchemaIndexes records how many indexes schema initialization ensured.
func (c *Collector) SetSchemaIndexes(n int) {
	c.schemaIndexes.Set(float64(n))
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
