package buffer

// SizeTracker keeps the running total of estimated bytes across all live
// buckets of one task against a configured ceiling.
//
// The total always equals the sum of the live buckets' individual
// estimates: Trace adds on every insertion and CountDown subtracts a
// flushed bucket's contribution.
type SizeTracker struct {
	bufferSize    int64
	maxBufferSize int64
}

// NewSizeTracker creates a tracker with the given ceiling.
func NewSizeTracker(maxBufferSizeBytes int64) *SizeTracker {
	return &SizeTracker{maxBufferSize: maxBufferSizeBytes}
}

// Trace adds the latest record size and reports whether the total now
// exceeds the ceiling.
func (t *SizeTracker) Trace(recordSize int64) bool {
	t.bufferSize += recordSize
	return t.bufferSize > t.maxBufferSize
}

// CountDown subtracts a flushed bucket's total from the running total.
func (t *SizeTracker) CountDown(bucketSize int64) {
	t.bufferSize -= bucketSize
	if t.bufferSize < 0 {
		t.bufferSize = 0
	}
}

// BufferSize returns the current running total in bytes.
func (t *SizeTracker) BufferSize() int64 {
	return t.bufferSize
}

// MaxBufferSize returns the configured ceiling in bytes.
func (t *SizeTracker) MaxBufferSize() int64 {
	return t.maxBufferSize
}

// Reset zeroes the running total.
func (t *SizeTracker) Reset() {
	t.bufferSize = 0
}
