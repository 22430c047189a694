package buffer

import (
	"testing"

	"github.com/lakeflow/tablesink/pkg/record"
)

func TestDedupeKeepsFirstOccurrencePosition(t *testing.T) {
	records := []record.Record{
		{Key: "a", Payload: []byte("a1")},
		{Key: "b", Payload: []byte("b1")},
		{Key: "a", Payload: []byte("a2")},
		{Key: "c", Payload: []byte("c1")},
	}

	out := dedupeRecords(records, record.LastWins)

	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	wantKeys := []string{"a", "b", "c"}
	for i, want := range wantKeys {
		if out[i].Key != want {
			t.Errorf("out[%d].Key = %q, want %q", i, out[i].Key, want)
		}
	}
	// The later arrival's payload wins, at the first occurrence's slot.
	if got := string(out[0].Payload); got != "a2" {
		t.Errorf("out[0].Payload = %q, want %q", got, "a2")
	}
}

func TestDedupeCustomMerger(t *testing.T) {
	firstWins := func(existing, incoming record.Record) record.Record {
		return existing
	}

	records := []record.Record{
		{Key: "a", Payload: []byte("a1")},
		{Key: "a", Payload: []byte("a2")},
	}

	out := dedupeRecords(records, firstWins)

	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if got := string(out[0].Payload); got != "a1" {
		t.Errorf("out[0].Payload = %q, want %q", got, "a1")
	}
}

func TestDedupeShortBatchUntouched(t *testing.T) {
	records := []record.Record{{Key: "a"}}
	out := dedupeRecords(records, record.LastWins)
	if len(out) != 1 || out[0].Key != "a" {
		t.Errorf("dedupeRecords() changed a single-record batch: %+v", out)
	}
}
