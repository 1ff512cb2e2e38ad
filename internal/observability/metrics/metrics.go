package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "factory_"

	resultSuccess = "success"
	resultError   = "error"

	ingestResultStored      = "stored"
	ingestResultDuplicate   = "duplicate"
	ingestResultInvalid     = "invalid"
	ingestResultUnavailable = "unavailable"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
	batchItems     *prometheus.CounterVec
	eventsIngested *prometheus.CounterVec

	queryTotal   *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec

	reconstructedEvents *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers metrics. When counter is set, a gauge reports the stored event count.
func Init(counter EventCounter, logger *zap.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total single event ingest requests by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		batchItems = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_batch_items_total",
				Help: "Total batch items by outcome",
			},
			[]string{"outcome"},
		)
		eventsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_ingested_total",
				Help: "Total stored events by event type",
			},
			[]string{"event_type"},
		)

		queryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "metrics_query_total",
				Help: "Total metrics queries by level and result",
			},
			[]string{"level", "result"},
		)
		queryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "metrics_query_latency_seconds",
				Help:    "Metrics query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"level", "result"},
		)

		reconstructedEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconstructed_events_total",
				Help: "Total events scanned by interval reconstruction by level",
			},
			[]string{"level"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			batchItems,
			eventsIngested,
			queryTotal,
			queryLatency,
			reconstructedEvents,
			reportExportTotal,
			reportExportLatency,
		)

		if counter != nil {
			registerStoreMetrics(counter, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = ingestResultStored
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddBatchItems records the outcome counts of one batch.
func AddBatchItems(success, duplicates, errors int) {
	if batchItems == nil {
		return
	}
	if success > 0 {
		batchItems.WithLabelValues(ingestResultStored).Add(float64(success))
	}
	if duplicates > 0 {
		batchItems.WithLabelValues(ingestResultDuplicate).Add(float64(duplicates))
	}
	if errors > 0 {
		batchItems.WithLabelValues(resultError).Add(float64(errors))
	}
}

// IncEventIngested increments the stored events counter.
func IncEventIngested(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if eventsIngested != nil {
		eventsIngested.WithLabelValues(eventType).Inc()
	}
}

// ObserveQuery records metrics query latency and result.
func ObserveQuery(level, result string, duration time.Duration) {
	if level == "" {
		level = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if queryTotal != nil {
		queryTotal.WithLabelValues(level, result).Inc()
	}
	if queryLatency != nil {
		queryLatency.WithLabelValues(level, result).Observe(duration.Seconds())
	}
}

// AddReconstructedEvents counts events scanned by the reconstruction engine.
func AddReconstructedEvents(level string, events int) {
	if events <= 0 {
		return
	}
	if level == "" {
		level = "unknown"
	}
	if reconstructedEvents != nil {
		reconstructedEvents.WithLabelValues(level).Add(float64(events))
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	IngestResultStored      = ingestResultStored
	IngestResultDuplicate   = ingestResultDuplicate
	IngestResultInvalid     = ingestResultInvalid
	IngestResultUnavailable = ingestResultUnavailable
	IngestResultError       = resultError
)
