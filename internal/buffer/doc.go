// Package buffer implements the write-buffering core of the sink.
//
// Records are grouped into per-target buckets and flushed when a bucket
// crosses its batch threshold, when the task's total buffer crosses its
// ceiling, or when a checkpoint boundary drains everything.
//
// # Buckets
//
// A Bucket buffers the records of one partition+file target in insertion
// order, paired with a SizeDetector that reports the batch-threshold
// crossing exactly once per crossing:
//
//	bucket := buffer.NewBucket(key, batchSizeBytes)
//	crossed := bucket.Add(rec)
//
// # Manager
//
// Manager owns the bucket map, the global SizeTracker and the flush
// policy. Records enter through Ingest; checkpoints drain through
// FlushAll, which publishes one final flush event and arms the commit
// gateway's confirmation barrier:
//
//	err := mgr.Ingest(ctx, rec)       // may flush at most one bucket
//	err := mgr.FlushAll(ctx, false)   // drains every non-empty bucket
//
// # Threading
//
// One Manager is driven by a single goroutine and holds no locks.
// Parallelism exists only between independent task instances, one per
// partitioned input shard.
package buffer
