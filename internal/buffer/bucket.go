package buffer

import (
	"github.com/lakeflow/tablesink/pkg/record"
)

// Bucket is the ordered in-memory buffer of records destined for one
// partition+file target, paired with its size detector.
//
// Bucket is a passive container: all flush triggering belongs to the
// Manager. Insertion order is significant and determines merge order.
type Bucket struct {
	key      string
	records  []record.Record
	detector *SizeDetector
}

// NewBucket creates an empty bucket for the given bucket key.
func NewBucket(key string, batchSizeBytes int64) *Bucket {
	return &Bucket{
		key:      key,
		detector: NewSizeDetector(batchSizeBytes),
	}
}

// Key returns the bucket identity.
func (b *Bucket) Key() string {
	return b.key
}

// Add appends a record and reports whether it crossed the bucket's batch
// threshold.
func (b *Bucket) Add(r record.Record) bool {
	b.records = append(b.records, r)
	return b.detector.Detect(r)
}

// Records returns the buffered records in insertion order. The slice is
// owned by the bucket and valid until the next Add or Reset.
func (b *Bucket) Records() []record.Record {
	return b.records
}

// IsEmpty returns true if the bucket holds no records.
func (b *Bucket) IsEmpty() bool {
	return len(b.records) == 0
}

// TotalBytes returns the bucket's cumulative estimated size.
func (b *Bucket) TotalBytes() int64 {
	return b.detector.TotalSize()
}

// LastRecordSize returns the estimate of the most recently added record.
func (b *Bucket) LastRecordSize() int64 {
	return b.detector.LastRecordSize()
}

// Reset clears the records and zeroes the size state. Resetting an
// already-empty bucket is a no-op.
func (b *Bucket) Reset() {
	b.records = b.records[:0]
	b.detector.Reset()
}
