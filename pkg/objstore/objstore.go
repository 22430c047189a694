// Package objstore defines the object-store interface for data files and
// timeline markers.
//
// This package provides the abstraction over the storage backends
// (S3, GCS, Azure Blob, local filesystem) the sink writes to.
package objstore

import "context"

// Writer writes finished objects to storage.
type Writer interface {
	// Put writes data at the given key and returns the number of bytes
	// written.
	Put(ctx context.Context, key string, data []byte) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}
