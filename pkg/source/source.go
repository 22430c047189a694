// Package source defines interfaces for consuming canonical records from
// an upstream transport.
//
// The sink is transport-agnostic: anything that can deliver located
// records with per-record acknowledgement can feed the buffer layer.
package source

import (
	"context"
	"time"

	"github.com/lakeflow/tablesink/pkg/record"
)

// Metadata carries transport position information for a consumed record.
type Metadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
}

// ConsumedRecord is a canonical record together with its transport
// position and an acknowledgement hook.
type ConsumedRecord struct {
	Record   record.Record
	Metadata Metadata

	// Ack marks the record as processed at the transport. For Kafka this
	// marks the offset for the next commit.
	Ack func() error
}

// Source reads canonical records from an upstream transport.
type Source interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming records from subscribed topics.
	// Returns channels for records and errors.
	Consume(ctx context.Context) (<-chan *ConsumedRecord, <-chan error, error)

	// Close closes the source and releases resources.
	Close() error
}

// DLQPublisher publishes undecodable or rejected messages to a dead
// letter queue.
type DLQPublisher interface {
	// Publish sends the raw message to the DLQ with failure information.
	Publish(ctx context.Context, raw []byte, metadata Metadata, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
