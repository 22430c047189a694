package buffer

import (
	"github.com/lakeflow/tablesink/pkg/record"
)

// recordOverheadBytes is the fixed bookkeeping cost charged per record on
// top of its field lengths.
const recordOverheadBytes = 48

// estimateSize estimates a record's in-memory footprint in bytes.
func estimateSize(r record.Record) int64 {
	size := len(r.Key)
	size += len(r.PartitionPath)
	size += len(r.FileID)
	size += len(r.Payload)
	size += len(r.InstantTime)
	return int64(size + recordOverheadBytes)
}

// SizeDetector tracks a bucket's cumulative estimated size against the
// per-bucket batch threshold.
//
// A crossing is reported exactly once: only the observation that first
// pushes the running total over the threshold since the last Reset
// returns true, not every observation while the total stays over it.
type SizeDetector struct {
	batchSizeBytes int64
	totalSize      int64
	lastRecordSize int64
	crossed        bool
}

// NewSizeDetector creates a detector with the given batch threshold.
func NewSizeDetector(batchSizeBytes int64) *SizeDetector {
	return &SizeDetector{batchSizeBytes: batchSizeBytes}
}

// Detect adds the record's estimated size to the running total and
// reports whether this observation crossed the batch threshold.
func (d *SizeDetector) Detect(r record.Record) bool {
	d.lastRecordSize = estimateSize(r)
	d.totalSize += d.lastRecordSize

	if d.crossed || d.totalSize <= d.batchSizeBytes {
		return false
	}
	d.crossed = true
	return true
}

// TotalSize returns the cumulative estimated bytes since the last reset.
func (d *SizeDetector) TotalSize() int64 {
	return d.totalSize
}

// LastRecordSize returns the estimate of the most recent record.
func (d *SizeDetector) LastRecordSize() int64 {
	return d.lastRecordSize
}

// Reset zeroes the running total and re-arms the threshold.
func (d *SizeDetector) Reset() {
	d.totalSize = 0
	d.lastRecordSize = 0
	d.crossed = false
}
