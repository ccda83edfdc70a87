// Package metrics provides Prometheus metrics for the AI UDF server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aistage"

var (
	// UDFCallsTotal tracks UDF batch calls by function and outcome.
	UDFCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "udf_calls_total",
			Help:      "Total UDF batch calls",
		},
		[]string{"function", "status"}, // status: success/error
	)

	// UDFCallLatency tracks end-to-end batch call latency per function.
	UDFCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "udf_call_latency_seconds",
			Help:      "UDF batch call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"function"},
	)

	// UDFRowsIn tracks input rows received per function.
	UDFRowsIn = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "udf_rows_in_total",
			Help:      "Total input rows received",
		},
		[]string{"function"},
	)

	// UDFRowsOut tracks output rows produced per function.
	UDFRowsOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "udf_rows_out_total",
			Help:      "Total output rows produced",
		},
		[]string{"function"},
	)

	// UDFRowFailures tracks per-row failures encoded in output (null vectors,
	// errorInformation payloads).
	UDFRowFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "udf_row_failures_total",
			Help:      "Total per-row failures encoded in output",
		},
		[]string{"function"},
	)

	// BackendInflight tracks backend invocations currently inside the
	// admission gate.
	BackendInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_inflight",
			Help:      "Backend invocations currently admitted",
		},
	)

	// AdmissionWait tracks time spent queued at the admission gate.
	AdmissionWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_wait_seconds",
			Help:      "Time spent waiting for backend admission",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// EmbedSubBatchesTotal tracks embedding sub-batch submissions.
	EmbedSubBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_sub_batches_total",
			Help:      "Total embedding sub-batches submitted to the backend",
		},
		[]string{"status"}, // success/error
	)

	// EmbedRetriesTotal tracks binary-split retries of failed sub-batches.
	EmbedRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_retries_total",
			Help:      "Total split retries of failed embedding sub-batches",
		},
	)

	// ListTruncationsTotal counts listings cut off at the caller's limit.
	ListTruncationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_truncations_total",
			Help:      "Total stage listings truncated at the row limit",
		},
	)

	// ParseFallbacksTotal counts documents parsed via the chunking fallback.
	ParseFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_fallbacks_total",
			Help:      "Total documents that used the chunking fallback",
		},
	)

	// ParseFailuresTotal counts documents that produced a failure payload.
	ParseFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Total documents that failed to parse",
		},
	)

	// ObjectStoreOps tracks object store operations.
	ObjectStoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objectstore_ops_total",
			Help:      "Total object store operations",
		},
		[]string{"operation", "status"}, // operation: get/head/list, status: success/error
	)

	// ObjectStoreLatency tracks object store operation latency.
	ObjectStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "objectstore_latency_seconds",
			Help:      "Object store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// StageOperatorCache tracks stage operator cache hits and misses.
	StageOperatorCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_operator_cache_total",
			Help:      "Stage operator cache lookups",
		},
		[]string{"result"}, // hit/miss
	)
)

// ObserveUDFCall records one batch call.
func ObserveUDFCall(function string, latencySeconds float64, rowsIn, rowsOut int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	UDFCallsTotal.WithLabelValues(function, status).Inc()
	UDFCallLatency.WithLabelValues(function).Observe(latencySeconds)
	if rowsIn > 0 {
		UDFRowsIn.WithLabelValues(function).Add(float64(rowsIn))
	}
	if rowsOut > 0 {
		UDFRowsOut.WithLabelValues(function).Add(float64(rowsOut))
	}
}

// IncRowFailure records a per-row failure encoded in a function's output.
func IncRowFailure(function string) {
	UDFRowFailures.WithLabelValues(function).Inc()
}

// GateAcquired records admission after waiting for the given time.
func GateAcquired(waitSeconds float64) {
	BackendInflight.Inc()
	AdmissionWait.Observe(waitSeconds)
}

// GateReleased records a backend invocation leaving the gate.
func GateReleased() {
	BackendInflight.Dec()
}

// ObserveEmbedSubBatch records an embedding sub-batch submission.
func ObserveEmbedSubBatch(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EmbedSubBatchesTotal.WithLabelValues(status).Inc()
}

// IncEmbedRetry records a binary-split retry.
func IncEmbedRetry() {
	EmbedRetriesTotal.Inc()
}

// IncListTruncation records a listing cut off at the row limit.
func IncListTruncation() {
	ListTruncationsTotal.Inc()
}

// IncParseFallback records a document parsed via the chunking fallback.
func IncParseFallback() {
	ParseFallbacksTotal.Inc()
}

// IncParseFailure records a document that produced a failure payload.
func IncParseFailure() {
	ParseFailuresTotal.Inc()
}

// ObserveObjectStoreOp records an object store operation.
func ObserveObjectStoreOp(operation string, latencySeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ObjectStoreOps.WithLabelValues(operation, status).Inc()
	ObjectStoreLatency.WithLabelValues(operation).Observe(latencySeconds)
}

// IncOperatorCache records a stage operator cache lookup result.
func IncOperatorCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	StageOperatorCache.WithLabelValues(result).Inc()
}
