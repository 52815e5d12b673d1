package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FlushTotal counts batch flushes by outcome
	FlushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tqormysql_flush_total",
			Help: "Total number of batch flushes",
		},
		[]string{"outcome"},
	)

	// FlushLatency tracks batch flush latency
	FlushLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tqormysql_flush_latency_seconds",
			Help:    "Batch flush latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BatchSize tracks accepted commands per flushed batch
	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tqormysql_batch_size",
			Help:    "Accepted commands per flushed batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	// AdmissionRejections counts rejected admissions by reason
	AdmissionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tqormysql_admission_rejections_total",
			Help: "Total admissions rejected by the batch",
		},
		[]string{"reason"},
	)

	// GroupedInsertSize tracks rows per rendered bulk-insert statement
	GroupedInsertSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tqormysql_grouped_insert_size",
			Help:    "Rows per rendered bulk-insert statement",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	// PropagatedKeys counts server-generated keys written back into records
	PropagatedKeys = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tqormysql_propagated_keys_total",
			Help: "Total server-generated key values propagated into records",
		},
	)

	once sync.Once
)

// Init registers all metrics with Prometheus
func Init() {
	once.Do(func() {
		prometheus.MustRegister(FlushTotal)
		prometheus.MustRegister(FlushLatency)
		prometheus.MustRegister(BatchSize)
		prometheus.MustRegister(AdmissionRejections)
		prometheus.MustRegister(GroupedInsertSize)
		prometheus.MustRegister(PropagatedKeys)
	})
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
