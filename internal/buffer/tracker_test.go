package buffer

import "testing"

func TestTrackerTraceReportsCeiling(t *testing.T) {
	tr := NewSizeTracker(100)

	if tr.Trace(60) {
		t.Error("Trace(60) = true, want false")
	}
	if tr.Trace(40) {
		t.Error("Trace(40) = true at exactly the ceiling, want false")
	}
	if !tr.Trace(1) {
		t.Error("Trace(1) = false over the ceiling, want true")
	}
	if got := tr.BufferSize(); got != 101 {
		t.Errorf("BufferSize() = %d, want 101", got)
	}
}

func TestTrackerCountDownFloorsAtZero(t *testing.T) {
	tr := NewSizeTracker(100)

	tr.Trace(50)
	tr.CountDown(30)
	if got := tr.BufferSize(); got != 20 {
		t.Errorf("BufferSize() = %d, want 20", got)
	}

	tr.CountDown(1000)
	if got := tr.BufferSize(); got != 0 {
		t.Errorf("BufferSize() after oversubtraction = %d, want 0", got)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewSizeTracker(100)
	tr.Trace(80)
	tr.Reset()

	if got := tr.BufferSize(); got != 0 {
		t.Errorf("BufferSize() after reset = %d, want 0", got)
	}
}
