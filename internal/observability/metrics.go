package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Source metrics
	MessagesConsumed *prometheus.CounterVec
	MessagesDLQ      *prometheus.CounterVec

	// Buffering metrics
	RecordsBuffered   prometheus.Counter
	BufferedBytes     prometheus.Gauge
	BucketCount       prometheus.Gauge
	BucketFlushes     *prometheus.CounterVec
	FlushDuration     *prometheus.HistogramVec
	FlushEvents       *prometheus.CounterVec

	// Apply metrics
	DataFilesWritten *prometheus.CounterVec
	DataFileSize     *prometheus.HistogramVec
	ApplyDuration    prometheus.Histogram

	// Coordination metrics
	InstantsOpened prometheus.Counter
	Commits        *prometheus.CounterVec

	// Storage metrics
	ObjectsWritten *prometheus.CounterVec
	ObjectSize     *prometheus.HistogramVec
	PutDuration    *prometheus.HistogramVec
	StorageErrors  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		MessagesDLQ: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_dlq_total",
				Help: "Total number of messages published to the DLQ",
			},
			[]string{"topic", "reason"},
		),

		RecordsBuffered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sink_records_buffered_total",
				Help: "Total number of records routed into buckets",
			},
		),
		BufferedBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sink_buffered_bytes",
				Help: "Current estimated bytes buffered across all buckets",
			},
		),
		BucketCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sink_bucket_count",
				Help: "Current number of non-empty buckets",
			},
		),
		BucketFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_bucket_flushes_total",
				Help: "Total number of bucket flushes by trigger reason",
			},
			[]string{"reason"},
		),
		FlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_flush_duration_seconds",
				Help:    "Duration of flush operations by trigger reason",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"reason"},
		),
		FlushEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_flush_events_total",
				Help: "Total number of flush events published to the coordinator",
			},
			[]string{"last_batch"},
		),

		DataFilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_data_files_written_total",
				Help: "Total number of data files written",
			},
			[]string{"format", "status"},
		),
		DataFileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_data_file_size_bytes",
				Help:    "Size of written data files",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"format"},
		),
		ApplyDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sink_apply_duration_seconds",
				Help:    "Duration of write-apply operations",
				Buckets: prometheus.DefBuckets,
			},
		),

		InstantsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sink_instants_opened_total",
				Help: "Total number of instants opened on the timeline",
			},
		),
		Commits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_commits_total",
				Help: "Total number of instant commits by status",
			},
			[]string{"status"},
		),

		ObjectsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_objects_written_total",
				Help: "Total number of objects written to storage",
			},
			[]string{"backend", "status"},
		),
		ObjectSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_object_size_bytes",
				Help:    "Size of objects written to storage",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"backend"},
		),
		PutDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_put_duration_seconds",
				Help:    "Duration of storage put operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of storage operation errors",
			},
			[]string{"backend", "operation"},
		),
	}
}

// IncRecordsBuffered implements the buffer manager's collector.
func (m *Metrics) IncRecordsBuffered() {
	m.RecordsBuffered.Inc()
}

// SetBufferedBytes implements the buffer manager's collector.
func (m *Metrics) SetBufferedBytes(bytes float64) {
	m.BufferedBytes.Set(bytes)
}

// SetBucketCount implements the buffer manager's collector.
func (m *Metrics) SetBucketCount(count float64) {
	m.BucketCount.Set(count)
}

// IncBucketFlushes implements the buffer manager's collector.
func (m *Metrics) IncBucketFlushes(reason string) {
	m.BucketFlushes.WithLabelValues(reason).Inc()
}

// ObserveFlushDuration implements the buffer manager's collector.
func (m *Metrics) ObserveFlushDuration(reason string, seconds float64) {
	m.FlushDuration.WithLabelValues(reason).Observe(seconds)
}

// IncFlushEvents implements the buffer manager's collector.
func (m *Metrics) IncFlushEvents(lastBatch bool) {
	label := "false"
	if lastBatch {
		label = "true"
	}
	m.FlushEvents.WithLabelValues(label).Inc()
}

// IncDataFilesWritten implements the applier's collector.
func (m *Metrics) IncDataFilesWritten(format string, status string) {
	m.DataFilesWritten.WithLabelValues(format, status).Inc()
}

// ObserveDataFileSize implements the applier's collector.
func (m *Metrics) ObserveDataFileSize(format string, size float64) {
	m.DataFileSize.WithLabelValues(format).Observe(size)
}

// ObserveApplyDuration implements the applier's collector.
func (m *Metrics) ObserveApplyDuration(seconds float64) {
	m.ApplyDuration.Observe(seconds)
}

// IncInstantsOpened implements the coordinator's collector.
func (m *Metrics) IncInstantsOpened() {
	m.InstantsOpened.Inc()
}

// IncCommits implements the coordinator's collector.
func (m *Metrics) IncCommits(status string) {
	m.Commits.WithLabelValues(status).Inc()
}

// IncObjectsWritten implements the storage collector.
func (m *Metrics) IncObjectsWritten(backend string, status string) {
	m.ObjectsWritten.WithLabelValues(backend, status).Inc()
}

// ObserveObjectSize implements the storage collector.
func (m *Metrics) ObserveObjectSize(backend string, size float64) {
	m.ObjectSize.WithLabelValues(backend).Observe(size)
}

// ObservePutDuration implements the storage collector.
func (m *Metrics) ObservePutDuration(backend string, duration float64) {
	m.PutDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors implements the storage collector.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncMessagesConsumed implements the source collector.
func (m *Metrics) IncMessagesConsumed(topic string, partition string) {
	m.MessagesConsumed.WithLabelValues(topic, partition).Inc()
}

// IncMessagesDLQ implements the source collector.
func (m *Metrics) IncMessagesDLQ(topic string, reason string) {
	m.MessagesDLQ.WithLabelValues(topic, reason).Inc()
}
