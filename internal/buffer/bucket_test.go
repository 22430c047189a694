package buffer

import (
	"testing"

	"github.com/lakeflow/tablesink/pkg/record"
)

func TestBucketAddPreservesInsertionOrder(t *testing.T) {
	b := NewBucket("p1_f1", 1000)

	b.Add(testRecord("k1", 10))
	b.Add(testRecord("k2", 10))
	b.Add(testRecord("k3", 10))

	records := b.Records()
	if len(records) != 3 {
		t.Fatalf("len(Records()) = %d, want 3", len(records))
	}
	for i, want := range []string{"k1", "k2", "k3"} {
		if records[i].Key != want {
			t.Errorf("Records()[%d].Key = %q, want %q", i, records[i].Key, want)
		}
	}
}

func TestBucketAddReportsThresholdCrossing(t *testing.T) {
	b := NewBucket("p1_f1", 150)

	if b.Add(testRecord("k1", 50)) {
		t.Error("Add() = true below threshold, want false")
	}
	if !b.Add(testRecord("k2", 50)) {
		t.Error("Add() = false on crossing, want true")
	}
}

func TestBucketReset(t *testing.T) {
	b := NewBucket("p1_f1", 1000)
	b.Add(testRecord("k1", 10))

	b.Reset()

	if !b.IsEmpty() {
		t.Error("IsEmpty() = false after reset, want true")
	}
	if got := b.TotalBytes(); got != 0 {
		t.Errorf("TotalBytes() after reset = %d, want 0", got)
	}

	// Resetting an empty bucket must be harmless.
	b.Reset()
	if !b.IsEmpty() {
		t.Error("IsEmpty() = false after double reset, want true")
	}
}

func TestBucketKeyOf(t *testing.T) {
	r := testRecord("k1", 0)
	if got := record.BucketKeyOf(r); got != "p1_f1" {
		t.Errorf("BucketKeyOf() = %q, want %q", got, "p1_f1")
	}
}
