// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoInflightInstant is returned when a checkpoint drain has
	// pending data but instant resolution yields nothing. This indicates
	// a coordination protocol violation upstream and is fatal.
	ErrNoInflightInstant = errors.New("no inflight instant when flushing data")

	// ErrNotAccepting is returned when a record is buffered while the
	// sink is draining or awaiting instant confirmation. This is a
	// scheduling bug in the caller and is fatal.
	ErrNotAccepting = errors.New("sink is not accepting records")

	// ErrConfirmationTimeout is returned when the coordinator does not
	// confirm a new instant within the configured timeout.
	ErrConfirmationTimeout = errors.New("timed out waiting for instant confirmation")

	// ErrUnsupportedOperation is returned at setup for an operation the
	// write path does not support.
	ErrUnsupportedOperation = errors.New("unsupported write operation")

	ErrWriterClosed   = errors.New("object writer is closed")
	ErrSourceClosed   = errors.New("record source is closed")
	ErrEmptyBucket    = errors.New("data bucket to flush has no buffered records")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrConnectionLost = errors.New("connection lost")
)

// FlushError represents a failure while flushing one bucket.
type FlushError struct {
	BucketKey   string
	InstantTime string
	Err         error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush error: bucket=%s instant=%s: %v",
		e.BucketKey, e.InstantTime, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// CommitError represents a failure while persisting a commit marker.
type CommitError struct {
	InstantTime string
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: instant=%s: %v", e.InstantTime, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError represents a record validation failure.
type ValidationError struct {
	RecordKey string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: record_key=%s field=%s: %s",
		e.RecordKey, e.Field, e.Reason)
}

// IsFatal reports whether an error must abort the task rather than be
// logged and absorbed. Every coordination-protocol error is fatal; the
// soft global-ceiling flush failure is the one condition callers may
// downgrade to a warning.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoInflightInstant) ||
		errors.Is(err, ErrNotAccepting) ||
		errors.Is(err, ErrConfirmationTimeout) ||
		errors.Is(err, ErrUnsupportedOperation)
}
