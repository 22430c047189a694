// Package objstore implements object-store writer implementations.
package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lakeflow/tablesink/pkg/objstore"
)

// Ensure implementation satisfies interface at compile time.
var _ objstore.Writer = (*FileWriter)(nil)

// MetricsCollector defines metrics operations for object storage.
type MetricsCollector interface {
	IncObjectsWritten(backend string, status string)
	ObserveObjectSize(backend string, size float64)
	ObservePutDuration(backend string, duration float64)
	IncStorageErrors(backend string, operation string)
}

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements objstore.Writer for local filesystem storage.
// Objects are laid out as files under the base path with their key as
// relative path.
type FileWriter struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewFileWriter creates a new filesystem object writer.
func NewFileWriter(config FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileWriter, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem writer created", "base_path", config.BasePath)

	return &FileWriter{
		basePath: config.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Put writes the object under basePath/key.
func (w *FileWriter) Put(ctx context.Context, key string, data []byte) (int64, error) {
	startTime := time.Now()

	cleanKey := strings.TrimPrefix(key, "file://")
	fullPath := filepath.Join(w.basePath, filepath.FromSlash(cleanKey))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		if w.metrics != nil {
			w.metrics.IncStorageErrors("file", "mkdir")
		}
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		if w.metrics != nil {
			w.metrics.IncStorageErrors("file", "write")
		}
		return 0, fmt.Errorf("failed to write object: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote object to file",
		"path", fullPath,
		"size", len(data),
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncObjectsWritten("file", "success")
		w.metrics.ObserveObjectSize("file", float64(len(data)))
		w.metrics.ObservePutDuration("file", duration.Seconds())
	}

	return int64(len(data)), nil
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.logger.Info("closing filesystem writer")
	return nil
}
