// Package objstore implements Google Cloud Storage object writer.
package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/lakeflow/tablesink/pkg/objstore"
)

// Ensure implementation satisfies interface at compile time.
var _ objstore.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// GCSWriter implements objstore.Writer for Google Cloud Storage.
// It supports multiple authentication methods (service account file,
// JSON, default credentials).
type GCSWriter struct {
	client  *storage.Client
	bucket  string
	logger  *slog.Logger
	metrics MetricsCollector
}

// NewGCSWriter creates a new Google Cloud Storage writer.
func NewGCSWriter(cfg GCSConfig, logger *slog.Logger, metrics MetricsCollector) (*GCSWriter, error) {
	ctx := context.Background()

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	if cfg.UseDefaultCredential {
		// Uses GOOGLE_APPLICATION_CREDENTIALS env var or the default
		// service account.
		logger.Info("using default GCP credentials")
	} else if cfg.CredentialsJSON != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	} else if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	} else {
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
	)

	return &GCSWriter{
		client:  client,
		bucket:  cfg.Bucket,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Put uploads the object to GCS under the given key.
func (w *GCSWriter) Put(ctx context.Context, key string, data []byte) (int64, error) {
	startTime := time.Now()

	objectKey := key
	if strings.HasPrefix(key, "gs://") {
		pathWithoutProtocol := strings.TrimPrefix(key, "gs://")
		parts := strings.SplitN(pathWithoutProtocol, "/", 2)
		if len(parts) == 2 {
			objectKey = parts[1]
		} else {
			objectKey = ""
		}
	}
	objectKey = strings.TrimPrefix(objectKey, "/")

	objWriter := w.client.Bucket(w.bucket).Object(objectKey).NewWriter(ctx)
	if _, err := objWriter.Write(data); err != nil {
		objWriter.Close()
		if w.metrics != nil {
			w.metrics.IncStorageErrors("gcs", "write")
		}
		return 0, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := objWriter.Close(); err != nil {
		if w.metrics != nil {
			w.metrics.IncStorageErrors("gcs", "close")
		}
		return 0, fmt.Errorf("failed to finalize GCS object: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote object to GCS",
		"bucket", w.bucket,
		"key", objectKey,
		"size", len(data),
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncObjectsWritten("gcs", "success")
		w.metrics.ObserveObjectSize("gcs", float64(len(data)))
		w.metrics.ObservePutDuration("gcs", duration.Seconds())
	}

	return int64(len(data)), nil
}

// Close closes the GCS writer.
func (w *GCSWriter) Close() error {
	w.logger.Info("closing GCS writer")
	return w.client.Close()
}
