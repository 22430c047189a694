package coordinator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lakeflow/tablesink/internal/objstore"
	"github.com/lakeflow/tablesink/pkg/record"
)

// fakeStore collects committed objects in memory.
type fakeStore struct {
	objects map[string][]byte
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(ctx context.Context, key string, data []byte) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.objects[key] = data
	return int64(len(data)), nil
}

func (s *fakeStore) Close() error { return nil }

type fakeConfirmer struct {
	confirms int
}

func (c *fakeConfirmer) Confirm() { c.confirms++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(store *fakeStore) (*Coordinator, *fakeConfirmer, *objstore.Layout) {
	layout := objstore.NewLayout("warehouse", "events")
	c := New(store, layout, testLogger(), nil)
	c.now = func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 678000000, time.UTC)
	}
	confirmer := &fakeConfirmer{}
	c.Bind(confirmer)
	return c, confirmer, layout
}

func TestCurrentOrRequestWithoutPendingReturnsEmpty(t *testing.T) {
	c, _, _ := newTestCoordinator(newFakeStore())

	instant, err := c.CurrentOrRequest(context.Background(), false)
	if err != nil {
		t.Fatalf("CurrentOrRequest() error = %v", err)
	}
	if instant != "" {
		t.Errorf("instant = %q, want empty", instant)
	}
}

func TestCurrentOrRequestOpensInstant(t *testing.T) {
	c, _, _ := newTestCoordinator(newFakeStore())
	ctx := context.Background()

	instant, err := c.CurrentOrRequest(ctx, true)
	if err != nil {
		t.Fatalf("CurrentOrRequest() error = %v", err)
	}
	if instant != "20240102030405678" {
		t.Errorf("instant = %q, want %q", instant, "20240102030405678")
	}

	// The same open instant is returned until it commits.
	again, _ := c.CurrentOrRequest(ctx, true)
	if again != instant {
		t.Errorf("second request = %q, want the open instant %q", again, instant)
	}
}

func TestCommitWritesMarkerAndOpensNextInstant(t *testing.T) {
	store := newFakeStore()
	c, confirmer, layout := newTestCoordinator(store)
	ctx := context.Background()

	instant, _ := c.CurrentOrRequest(ctx, true)

	// Partial events accumulate without committing.
	c.OnFlushEvent(record.FlushEvent{
		InstantTime: instant,
		Statuses:    []record.WriteStatus{{FileID: "f1", TotalRecords: 2}},
		LastBatch:   false,
	})
	if len(store.objects) != 0 {
		t.Fatal("partial event committed a marker")
	}

	c.OnFlushEvent(record.FlushEvent{
		InstantTime: instant,
		Statuses:    []record.WriteStatus{{FileID: "f2", TotalRecords: 1}},
		LastBatch:   true,
	})

	markerKey := layout.TimelineKey(instant)
	data, ok := store.objects[markerKey]
	if !ok {
		t.Fatalf("no marker at %q, objects = %v", markerKey, store.objects)
	}

	var marker CommitMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		t.Fatalf("unmarshal marker: %v", err)
	}
	if marker.InstantTime != instant {
		t.Errorf("marker.InstantTime = %q, want %q", marker.InstantTime, instant)
	}
	if len(marker.Statuses) != 2 {
		t.Errorf("len(marker.Statuses) = %d, want 2", len(marker.Statuses))
	}

	if confirmer.confirms != 1 {
		t.Errorf("confirms = %d, want 1", confirmer.confirms)
	}

	// The next instant opened immediately and is strictly greater even
	// under a frozen clock.
	next := c.CurrentInstant()
	if next == "" {
		t.Fatal("no instant open after commit")
	}
	if next <= instant {
		t.Errorf("next instant %q not greater than %q", next, instant)
	}
}

func TestCommitFailureWithholdsConfirmation(t *testing.T) {
	store := newFakeStore()
	store.err = stderrors.New("timeline unavailable")
	c, confirmer, _ := newTestCoordinator(store)
	ctx := context.Background()

	instant, _ := c.CurrentOrRequest(ctx, true)
	c.OnFlushEvent(record.FlushEvent{InstantTime: instant, LastBatch: true})

	if confirmer.confirms != 0 {
		t.Errorf("confirms = %d, want 0 after commit failure", confirmer.confirms)
	}
}

func TestEndOfInputCommitsWithoutReopening(t *testing.T) {
	store := newFakeStore()
	c, confirmer, _ := newTestCoordinator(store)
	ctx := context.Background()

	instant, _ := c.CurrentOrRequest(ctx, true)
	c.OnFlushEvent(record.FlushEvent{
		InstantTime: instant,
		LastBatch:   true,
		EndOfInput:  true,
	})

	if got := c.CurrentInstant(); got != "" {
		t.Errorf("CurrentInstant() = %q after end of input, want empty", got)
	}
	if confirmer.confirms != 1 {
		t.Errorf("confirms = %d, want 1", confirmer.confirms)
	}
}
