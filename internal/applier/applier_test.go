package applier

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lakeflow/tablesink/internal/encoder"
	"github.com/lakeflow/tablesink/internal/errors"
	"github.com/lakeflow/tablesink/internal/objstore"
	"github.com/lakeflow/tablesink/pkg/record"
)

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApplier(t *testing.T, store *fakeStore) *StorageApplier {
	t.Helper()

	layout := objstore.NewLayout("warehouse", "events")
	enc, err := encoder.NewFactory("parquet", "snappy").CreateEncoder()
	if err != nil {
		t.Fatalf("CreateEncoder() error = %v", err)
	}

	a, err := New(record.OpUpsert, 7, layout, enc, store, testLogger(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func batch(n int) []record.Record {
	records := make([]record.Record, n)
	for i := range records {
		records[i] = record.Record{
			Key:           "k" + string(rune('0'+i)),
			PartitionPath: "dt=2024-01-02",
			FileID:        "f1",
			Operation:     record.OpUpsert,
			Payload:       []byte("payload"),
		}
	}
	return records
}

func TestNewRejectsUnknownOperation(t *testing.T) {
	_, err := New(record.Operation("merge"), 0, objstore.NewLayout("w", "t"), nil, newFakeStore(), testLogger(), nil)
	if !stderrors.Is(err, errors.ErrUnsupportedOperation) {
		t.Errorf("New() error = %v, want ErrUnsupportedOperation", err)
	}
}

func TestApplyWritesOneDataFile(t *testing.T) {
	store := newFakeStore()
	a := newTestApplier(t, store)

	statuses, err := a.Apply(context.Background(), record.OpUpsert, "20240102030405678", batch(3))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("len(statuses) = %d, want 1", len(statuses))
	}

	status := statuses[0]
	if status.FileID != "f1" || status.PartitionPath != "dt=2024-01-02" {
		t.Errorf("status target = %s/%s, want dt=2024-01-02/f1", status.PartitionPath, status.FileID)
	}
	if status.InstantTime != "20240102030405678" {
		t.Errorf("status.InstantTime = %q", status.InstantTime)
	}
	if status.TotalRecords != 3 {
		t.Errorf("status.TotalRecords = %d, want 3", status.TotalRecords)
	}

	if len(store.objects) != 1 {
		t.Fatalf("len(objects) = %d, want 1", len(store.objects))
	}
	if _, ok := store.objects[status.Path]; !ok {
		t.Errorf("no object at reported path %q", status.Path)
	}
	if !strings.HasSuffix(status.Path, ".parquet") {
		t.Errorf("path %q missing format extension", status.Path)
	}
	if status.TotalBytes != int64(len(store.objects[status.Path])) {
		t.Errorf("status.TotalBytes = %d, want %d", status.TotalBytes, len(store.objects[status.Path]))
	}
}

func TestApplyWriteTokensAreUnique(t *testing.T) {
	store := newFakeStore()
	a := newTestApplier(t, store)
	ctx := context.Background()

	first, err := a.Apply(ctx, record.OpUpsert, "20240102030405678", batch(1))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	second, err := a.Apply(ctx, record.OpUpsert, "20240102030405678", batch(1))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if first[0].Path == second[0].Path {
		t.Errorf("two applies produced the same path %q", first[0].Path)
	}
}

func TestApplyGuards(t *testing.T) {
	a := newTestApplier(t, newFakeStore())
	ctx := context.Background()

	if _, err := a.Apply(ctx, record.OpUpsert, "20240102030405678", nil); !stderrors.Is(err, errors.ErrEmptyBucket) {
		t.Errorf("empty batch error = %v, want ErrEmptyBucket", err)
	}
	if _, err := a.Apply(ctx, record.OpUpsert, "", batch(1)); !stderrors.Is(err, errors.ErrNoInflightInstant) {
		t.Errorf("no instant error = %v, want ErrNoInflightInstant", err)
	}

	a.Close()
	if _, err := a.Apply(ctx, record.OpUpsert, "20240102030405678", batch(1)); !stderrors.Is(err, errors.ErrWriterClosed) {
		t.Errorf("closed applier error = %v, want ErrWriterClosed", err)
	}
}

func TestApplyStorageFailure(t *testing.T) {
	store := newFakeStore()
	store.err = stderrors.New("bucket gone")
	a := newTestApplier(t, store)

	_, err := a.Apply(context.Background(), record.OpUpsert, "20240102030405678", batch(1))
	var storageErr *errors.StorageError
	if !stderrors.As(err, &storageErr) {
		t.Fatalf("Apply() error = %v, want *StorageError", err)
	}
	if storageErr.Operation != "put" {
		t.Errorf("StorageError.Operation = %q, want put", storageErr.Operation)
	}
}
