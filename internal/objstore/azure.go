// Package objstore implements Azure Blob object writer.
package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/lakeflow/tablesink/pkg/objstore"
)

// Ensure implementation satisfies interface at compile time.
var _ objstore.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// AzureWriter implements objstore.Writer for Azure Blob Storage.
// It authenticates with an account access key and uploads finished
// objects as block blobs.
type AzureWriter struct {
	client        *azblob.Client
	containerName string
	logger        *slog.Logger
	metrics       MetricsCollector
}

// NewAzureWriter creates a new Azure Blob object writer.
func NewAzureWriter(cfg AzureConfig, logger *slog.Logger, metrics MetricsCollector) (*AzureWriter, error) {
	var connectionString string
	if cfg.Endpoint != "" {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	} else {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
			cfg.AccountName, cfg.AccountKey)
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure Blob writer created",
		"account", cfg.AccountName,
		"container", cfg.ContainerName,
	)

	return &AzureWriter{
		client:        client,
		containerName: cfg.ContainerName,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Put uploads the object as a block blob under the given key.
func (w *AzureWriter) Put(ctx context.Context, key string, data []byte) (int64, error) {
	startTime := time.Now()

	blobKey := strings.TrimPrefix(key, "/")

	if _, err := w.client.UploadBuffer(ctx, w.containerName, blobKey, data, nil); err != nil {
		if w.metrics != nil {
			w.metrics.IncStorageErrors("azure", "upload")
		}
		return 0, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote object to Azure Blob",
		"container", w.containerName,
		"key", blobKey,
		"size", len(data),
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncObjectsWritten("azure", "success")
		w.metrics.ObserveObjectSize("azure", float64(len(data)))
		w.metrics.ObservePutDuration("azure", duration.Seconds())
	}

	return int64(len(data)), nil
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("closing Azure Blob writer")
	return nil
}
