package buffer

import (
	"context"
	"log/slog"
	"time"

	"github.com/lakeflow/tablesink/internal/errors"
	"github.com/lakeflow/tablesink/internal/gateway"
	"github.com/lakeflow/tablesink/pkg/record"
	"github.com/lakeflow/tablesink/pkg/sink"
)

// Flush trigger reasons reported to metrics.
const (
	ReasonBatchSize     = "batch_size"
	ReasonBufferCeiling = "buffer_ceiling"
	ReasonCheckpoint    = "checkpoint"
)

// MetricsCollector defines metrics operations for the buffering core.
// Implementations must not fail: metric emission can never abort a flush
// in flight.
type MetricsCollector interface {
	IncRecordsBuffered()
	SetBufferedBytes(bytes float64)
	SetBucketCount(count float64)
	IncBucketFlushes(reason string)
	ObserveFlushDuration(reason string, seconds float64)
	IncFlushEvents(lastBatch bool)
}

// Config holds the buffering options for one sink task.
type Config struct {
	// TaskID identifies this parallel task in flush events.
	TaskID int

	// Operation is the write operation passed to the applier.
	Operation record.Operation

	// BatchSizeBytes is the per-bucket flush threshold.
	BatchSizeBytes int64

	// MaxBufferSizeBytes is the ceiling across all buckets of the task.
	MaxBufferSizeBytes int64

	// PreCombine enables merge-on-write deduplication within a flush
	// batch.
	PreCombine bool

	// Merger combines records sharing a key when PreCombine is set.
	// Defaults to last-wins.
	Merger record.Merger
}

// Manager owns the bucket map of one sink task and drives the flush and
// instant lifecycle.
//
// A Manager is driven by a single goroutine: records arrive one at a
// time through Ingest, and FlushAll runs on the same goroutine at
// checkpoint boundaries. There is no locking inside the Manager;
// parallelism exists only between independent task instances.
type Manager struct {
	cfg      Config
	applier  sink.Applier
	resolver sink.InstantResolver
	gateway  *gateway.Gateway
	logger   *slog.Logger
	metrics  MetricsCollector

	buckets map[string]*Bucket
	order   []string
	tracker *SizeTracker
}

// NewManager creates a buffer manager. The operation must be one the
// applier supports; an unsupported operation fails at setup.
func NewManager(
	cfg Config,
	applier sink.Applier,
	resolver sink.InstantResolver,
	gw *gateway.Gateway,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*Manager, error) {
	switch cfg.Operation {
	case record.OpInsert, record.OpUpsert, record.OpDelete:
	default:
		return nil, errors.ErrUnsupportedOperation
	}
	if cfg.Merger == nil {
		cfg.Merger = record.LastWins
	}

	return &Manager{
		cfg:      cfg,
		applier:  applier,
		resolver: resolver,
		gateway:  gw,
		logger:   logger,
		metrics:  metrics,
		buckets:  make(map[string]*Bucket),
		tracker:  NewSizeTracker(cfg.MaxBufferSizeBytes),
	}, nil
}

// Ingest routes a record into its bucket and evaluates the flush
// triggers: the bucket's own batch threshold first, then the global
// buffer ceiling. At most one bucket flush happens per call.
//
// Ingest must not be called while a checkpoint drain or confirmation
// wait is in progress; doing so fails fast rather than buffering into a
// stale instant.
func (m *Manager) Ingest(ctx context.Context, r record.Record) error {
	if !m.gateway.Accepting() {
		return errors.ErrNotAccepting
	}
	if m.metrics != nil {
		m.metrics.IncRecordsBuffered()
	}

	key := record.BucketKeyOf(r)
	bucket, ok := m.buckets[key]
	if !ok {
		bucket = NewBucket(key, m.cfg.BatchSizeBytes)
		m.buckets[key] = bucket
		m.order = append(m.order, key)
	}

	isFullBucket := bucket.Add(r)
	isFullBuffer := m.tracker.Trace(bucket.LastRecordSize())
	m.publishBufferMetrics()

	if isFullBucket {
		flushed, err := m.flushBucket(ctx, bucket, ReasonBatchSize)
		if err != nil {
			return err
		}
		if flushed {
			m.tracker.CountDown(bucket.TotalBytes())
			bucket.Reset()
		}
	} else if isFullBuffer {
		largest := m.largestBucket()
		flushed, err := m.flushBucket(ctx, largest, ReasonBufferCeiling)
		if err != nil {
			return err
		}
		if flushed {
			m.tracker.CountDown(largest.TotalBytes())
			largest.Reset()
		} else {
			// Backpressure resolves at the next successful flush or the
			// next checkpoint, so exceeding the ceiling here is not fatal.
			m.logger.Warn("buffer size hit the ceiling but flushing the largest bucket failed",
				"max_buffer_bytes", m.tracker.MaxBufferSize(),
				"buffer_bytes", m.tracker.BufferSize(),
			)
		}
	}

	m.publishBufferMetrics()
	return nil
}

// FlushAll drains every non-empty bucket at a checkpoint boundary,
// publishes one final flush event for the current instant and blocks
// further buffering until the coordinator confirms the next instant.
//
// The drain is synchronous: no Ingest call is serviced concurrently.
func (m *Manager) FlushAll(ctx context.Context, endOfInput bool) error {
	m.gateway.BeginDrain()

	hasData := m.hasData()
	instant, err := m.resolver.CurrentOrRequest(ctx, hasData)
	if err != nil {
		return err
	}
	if instant == "" {
		if hasData {
			return errors.ErrNoInflightInstant
		}
		// Empty checkpoint with no open instant: nothing to flush and
		// nothing the coordinator could confirm.
		m.logger.Info("no data and no inflight instant at checkpoint, skipping",
			"task_id", m.cfg.TaskID,
		)
		m.gateway.CancelDrain()
		return nil
	}

	start := time.Now()
	var statuses []record.WriteStatus
	for _, key := range m.order {
		bucket := m.buckets[key]
		if bucket.IsEmpty() {
			continue
		}
		batch, err := m.applyBucket(ctx, instant, bucket)
		if err != nil {
			return err
		}
		statuses = append(statuses, batch...)
		bucket.Reset()
	}
	if len(statuses) == 0 {
		m.logger.Info("no data to write at checkpoint",
			"task_id", m.cfg.TaskID,
			"instant", instant,
		)
	}

	ev := record.FlushEvent{
		TaskID:      m.cfg.TaskID,
		InstantTime: instant,
		Statuses:    statuses,
		LastBatch:   true,
		EndOfInput:  endOfInput,
	}
	m.gateway.Publish(ev)

	m.buckets = make(map[string]*Bucket)
	m.order = m.order[:0]
	m.tracker.Reset()
	m.publishBufferMetrics()

	if m.metrics != nil {
		m.metrics.IncBucketFlushes(ReasonCheckpoint)
		m.metrics.ObserveFlushDuration(ReasonCheckpoint, time.Since(start).Seconds())
		m.metrics.IncFlushEvents(true)
	}
	return nil
}

// BufferedBytes returns the tracker's running total across all buckets.
func (m *Manager) BufferedBytes() int64 {
	return m.tracker.BufferSize()
}

// DataBuffer returns a copy of the live buckets' contents keyed by
// bucket key, for inspection in tests.
func (m *Manager) DataBuffer() map[string][]record.Record {
	out := make(map[string][]record.Record, len(m.buckets))
	for key, bucket := range m.buckets {
		if bucket.IsEmpty() {
			continue
		}
		records := make([]record.Record, len(bucket.Records()))
		copy(records, bucket.Records())
		out[key] = records
	}
	return out
}

func (m *Manager) hasData() bool {
	for _, bucket := range m.buckets {
		if !bucket.IsEmpty() {
			return true
		}
	}
	return false
}

// largestBucket returns the live bucket with the largest estimated size,
// breaking ties by the smaller bucket key so the choice is deterministic.
func (m *Manager) largestBucket() *Bucket {
	var best *Bucket
	for _, key := range m.order {
		bucket := m.buckets[key]
		if bucket.IsEmpty() {
			continue
		}
		if best == nil ||
			bucket.TotalBytes() > best.TotalBytes() ||
			(bucket.TotalBytes() == best.TotalBytes() && bucket.Key() < best.Key()) {
			best = bucket
		}
	}
	return best
}

// flushBucket writes one bucket under the current instant and publishes
// a partial flush event. It returns false without error when no instant
// is inflight, leaving the records buffered.
func (m *Manager) flushBucket(ctx context.Context, bucket *Bucket, reason string) (bool, error) {
	instant, err := m.resolver.CurrentOrRequest(ctx, true)
	if err != nil {
		return false, err
	}
	if instant == "" {
		// An empty checkpoint may have left no inflight instant.
		m.logger.Info("no inflight instant when flushing data, skipping",
			"bucket", bucket.Key(),
		)
		return false, nil
	}
	if bucket.IsEmpty() {
		return false, errors.ErrEmptyBucket
	}

	start := time.Now()
	statuses, err := m.applyBucket(ctx, instant, bucket)
	if err != nil {
		return false, err
	}

	ev := record.FlushEvent{
		TaskID:      m.cfg.TaskID,
		InstantTime: instant,
		Statuses:    statuses,
		LastBatch:   false,
		EndOfInput:  false,
	}
	m.gateway.Publish(ev)

	if m.metrics != nil {
		m.metrics.IncBucketFlushes(reason)
		m.metrics.ObserveFlushDuration(reason, time.Since(start).Seconds())
		m.metrics.IncFlushEvents(false)
	}
	return true, nil
}

// applyBucket hands one deduplicated bucket batch to the applier. Applier
// errors propagate to the caller unretried: partial application state is
// unknown and recovery belongs to whole-task restart plus the applier's
// idempotency under instant re-use.
func (m *Manager) applyBucket(ctx context.Context, instant string, bucket *Bucket) ([]record.WriteStatus, error) {
	records := bucket.Records()
	if m.cfg.PreCombine {
		records = dedupeRecords(records, m.cfg.Merger)
	}
	statuses, err := m.applier.Apply(ctx, m.cfg.Operation, instant, records)
	if err != nil {
		return nil, &errors.FlushError{
			BucketKey:   bucket.Key(),
			InstantTime: instant,
			Err:         err,
		}
	}
	return statuses, nil
}

func (m *Manager) publishBufferMetrics() {
	if m.metrics == nil {
		return
	}
	m.metrics.SetBufferedBytes(float64(m.tracker.BufferSize()))
	live := 0
	for _, bucket := range m.buckets {
		if !bucket.IsEmpty() {
			live++
		}
	}
	m.metrics.SetBucketCount(float64(live))
}
