package buffer

import (
	"testing"

	"github.com/lakeflow/tablesink/pkg/record"
)

func testRecord(key string, payloadLen int) record.Record {
	return record.Record{
		Key:           key,
		PartitionPath: "p1",
		FileID:        "f1",
		Operation:     record.OpUpsert,
		Payload:       make([]byte, payloadLen),
	}
}

func TestEstimateSize(t *testing.T) {
	r := testRecord("k1", 50)

	// 2 (key) + 2 (partition) + 2 (file) + 50 (payload) + overhead
	want := int64(56 + recordOverheadBytes)
	if got := estimateSize(r); got != want {
		t.Errorf("estimateSize() = %d, want %d", got, want)
	}
}

func TestDetectorReportsCrossingOnce(t *testing.T) {
	d := NewSizeDetector(150)

	r := testRecord("k1", 50) // 104 bytes estimated

	if d.Detect(r) {
		t.Error("Detect() = true before threshold, want false")
	}
	if !d.Detect(r) {
		t.Error("Detect() = false on crossing, want true")
	}
	// Total stays over the threshold, but the crossing already fired.
	if d.Detect(r) {
		t.Error("Detect() = true after crossing, want false")
	}

	if got := d.TotalSize(); got != 3*104 {
		t.Errorf("TotalSize() = %d, want %d", got, 3*104)
	}
	if got := d.LastRecordSize(); got != 104 {
		t.Errorf("LastRecordSize() = %d, want %d", got, 104)
	}
}

func TestDetectorResetRearmsThreshold(t *testing.T) {
	d := NewSizeDetector(100)

	r := testRecord("k1", 50)
	if !d.Detect(r) {
		t.Fatal("Detect() = false on first crossing, want true")
	}

	d.Reset()

	if got := d.TotalSize(); got != 0 {
		t.Errorf("TotalSize() after reset = %d, want 0", got)
	}
	if !d.Detect(r) {
		t.Error("Detect() = false on crossing after reset, want true")
	}
}
