// Package record defines the canonical record and flush-event types for
// the table sink.
//
// A record arrives with its target partition and file already assigned by
// the upstream record-location index; the sink groups records by that
// target, writes them under a transaction instant and reports the results
// to the coordinator as flush events.
package record

import (
	"fmt"
	"strings"
)

// Operation is the write operation a record carries.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// ParseOperation parses an operation name as found in configuration.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "insert":
		return OpInsert, nil
	case "upsert":
		return OpUpsert, nil
	case "delete":
		return OpDelete, nil
	default:
		return "", fmt.Errorf("unknown write operation %q", s)
	}
}

// Record is a canonical record in transit through the sink. It is
// produced by the upstream conversion layer and immutable once produced.
type Record struct {
	// Key is the record key within the table.
	Key string

	// PartitionPath is the target partition assigned upstream.
	PartitionPath string

	// FileID is the target file group assigned upstream.
	FileID string

	// Operation is the write operation for this record.
	Operation Operation

	// Payload is the opaque encoded row.
	Payload []byte

	// InstantTime is the instant the record was located against, if any.
	InstantTime string
}

// BucketKey returns the bucket identity for a partition and file target.
// Records with equal bucket keys must be flushed together to preserve
// file-append locality.
func BucketKey(partitionPath, fileID string) string {
	return fmt.Sprintf("%s_%s", partitionPath, fileID)
}

// BucketKeyOf returns the bucket key for a record.
func BucketKeyOf(r Record) string {
	return BucketKey(r.PartitionPath, r.FileID)
}

// WriteStatus reports the durable write of one bucket batch.
type WriteStatus struct {
	FileID        string `json:"file_id"`
	PartitionPath string `json:"partition_path"`
	InstantTime   string `json:"instant_time"`
	Path          string `json:"path"`
	TotalRecords  int    `json:"total_records"`
	TotalBytes    int64  `json:"total_bytes"`
}

// FlushEvent is the unit of communication with the coordinator. It is
// immutable once constructed.
type FlushEvent struct {
	// TaskID identifies the parallel sink task that produced the event.
	TaskID int

	// InstantTime is the instant the statuses were written under.
	InstantTime string

	// Statuses are the write results carried by this event.
	Statuses []WriteStatus

	// LastBatch marks the checkpoint-boundary event: the last event for
	// the current instant. A false value means a mid-interval partial
	// flush of a single bucket.
	LastBatch bool

	// EndOfInput marks the final event of a bounded input.
	EndOfInput bool
}

// Merger combines two records that share a key within one flush batch.
// It must be pure; the incoming record is the later arrival.
type Merger func(existing, incoming Record) Record

// LastWins is the default merger: the later arrival replaces the earlier.
func LastWins(existing, incoming Record) Record {
	return incoming
}
