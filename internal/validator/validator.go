// Package validator provides canonical record validation.
package validator

import (
	"github.com/lakeflow/tablesink/internal/errors"
	"github.com/lakeflow/tablesink/pkg/record"
)

// RecordValidator validates canonical records before they are buffered.
// The upstream index is responsible for target assignment, so a record
// arriving without a partition or file target is a protocol error on the
// wire, not a data error to be patched here.
type RecordValidator struct{}

// NewRecordValidator creates a new record validator.
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{}
}

// Validate validates a canonical record.
func (v *RecordValidator) Validate(r record.Record) error {
	if r.Key == "" {
		return &errors.ValidationError{
			RecordKey: r.Key,
			Field:     "record_key",
			Reason:    "required field is missing",
		}
	}

	if r.PartitionPath == "" {
		return &errors.ValidationError{
			RecordKey: r.Key,
			Field:     "partition_path",
			Reason:    "required field is missing",
		}
	}

	if r.FileID == "" {
		return &errors.ValidationError{
			RecordKey: r.Key,
			Field:     "file_id",
			Reason:    "required field is missing",
		}
	}

	switch r.Operation {
	case record.OpInsert, record.OpUpsert, record.OpDelete:
	default:
		return &errors.ValidationError{
			RecordKey: r.Key,
			Field:     "operation",
			Reason:    "unknown operation " + string(r.Operation),
		}
	}

	return nil
}
