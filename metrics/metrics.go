package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricNamespace = "percona_collection_migrator"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Copy metrics.
var (
	//nolint:gochecknoglobals
	copyReadDocumentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "copy_read_document_total",
		Help:      "Total count of the documents read from the source.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	copyReadSizeBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "copy_read_size_bytes_total",
		Help:      "Total size of the read data in bytes.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	copyInsertDocumentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "copy_insert_document_total",
		Help:      "Total count of the inserted documents.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	copyInsertSizeBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "copy_insert_size_bytes_total",
		Help:      "Total size of the inserted data in bytes.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	copyInsertBatchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:      "copy_insert_batch_duration_seconds",
		Help:      "Duration of acknowledged insert batches in seconds.",
		Namespace: metricNamespace,
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	//nolint:gochecknoglobals
	copyCollectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "copy_collections_total",
		Help:      "Total collections whose copy finished, by result.",
		Namespace: metricNamespace,
	}, []string{"result"})

	//nolint:gochecknoglobals
	copyCollectionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "copy_collections_in_flight",
		Help:      "Number of collections being copied right now.",
		Namespace: metricNamespace,
	})
)

// Invocation metrics.
var (
	//nolint:gochecknoglobals
	probeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "probe_total",
		Help:      "Total connectivity probes, by endpoint side and result.",
		Namespace: metricNamespace,
	}, []string{"side", "result"})

	//nolint:gochecknoglobals
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "operations_total",
		Help:      "Total invoked operations, by operation and result.",
		Namespace: metricNamespace,
	}, []string{"operation", "result"})
)

// Init initializes and registers the metrics.
func Init(reg prometheus.Registerer) {
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: metricNamespace,
	}))

	reg.MustRegister(
		copyReadDocumentTotal,
		copyReadSizeBytesTotal,
		copyInsertDocumentTotal,
		copyInsertSizeBytesTotal,
		copyInsertBatchDurationSeconds,
		copyCollectionsTotal,
		copyCollectionsInFlight,

		probeTotal,
		operationsTotal,
	)
}

// AddCopyReadDocumentCount increments the total count of the read documents.
func AddCopyReadDocumentCount(v int) {
	copyReadDocumentTotal.Add(float64(v))
}

// AddCopyReadSize increments the total size of the read data counter.
func AddCopyReadSize(v uint64) {
	copyReadSizeBytesTotal.Add(float64(v))
}

// AddCopyInsertDocumentCount increments the total count of the inserted documents.
func AddCopyInsertDocumentCount(v int) {
	copyInsertDocumentTotal.Add(float64(v))
}

// AddCopyInsertSize increments the total size of the inserted data counter.
func AddCopyInsertSize(v uint64) {
	copyInsertSizeBytesTotal.Add(float64(v))
}

// ObserveCopyInsertBatchDuration records how long one insert batch took to be acknowledged.
func ObserveCopyInsertBatchDuration(dur time.Duration) {
	copyInsertBatchDurationSeconds.Observe(dur.Seconds())
}

// CollectionCopyStarted marks a collection copy as in flight.
func CollectionCopyStarted() {
	copyCollectionsInFlight.Inc()
}

// CollectionCopyFinished clears the in-flight mark and counts the result.
func CollectionCopyFinished(ok bool) {
	copyCollectionsInFlight.Dec()
	copyCollectionsTotal.WithLabelValues(result(ok)).Inc()
}

// IncProbe counts a connectivity probe of one endpoint side.
func IncProbe(side string, ok bool) {
	probeTotal.WithLabelValues(side, result(ok)).Inc()
}

// IncOperation counts an invoked operation.
func IncOperation(op string, ok bool) {
	operationsTotal.WithLabelValues(op, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}

	return ResultFailure
}
