package objstore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileWriterPutCreatesNestedObject(t *testing.T) {
	base := t.TempDir()
	w, err := NewFileWriter(FileConfig{BasePath: base}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer w.Close()

	data := []byte("parquet bytes")
	size, err := w.Put(context.Background(), "events/dt=2024-01-02/f1_0-1_x.parquet", data)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("Put() size = %d, want %d", size, len(data))
	}

	got, err := os.ReadFile(filepath.Join(base, "events", "dt=2024-01-02", "f1_0-1_x.parquet"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("object contents = %q, want %q", got, data)
	}
}

func TestFileWriterPutOverwrites(t *testing.T) {
	base := t.TempDir()
	w, err := NewFileWriter(FileConfig{BasePath: base}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	if _, err := w.Put(ctx, "k", []byte("old")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := w.Put(ctx, "k", []byte("new")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(base, "k"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "new" {
		t.Errorf("object contents = %q, want %q", got, "new")
	}
}
