package validator

import (
	stderrors "errors"
	"testing"

	"github.com/lakeflow/tablesink/internal/errors"
	"github.com/lakeflow/tablesink/pkg/record"
)

func validRecord() record.Record {
	return record.Record{
		Key:           "k1",
		PartitionPath: "dt=2024-01-02",
		FileID:        "f1",
		Operation:     record.OpUpsert,
		Payload:       []byte("{}"),
	}
}

func TestValidateAcceptsCompleteRecord(t *testing.T) {
	v := NewRecordValidator()
	if err := v.Validate(validRecord()); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	v := NewRecordValidator()

	cases := []struct {
		name   string
		mutate func(*record.Record)
		field  string
	}{
		{"missing key", func(r *record.Record) { r.Key = "" }, "record_key"},
		{"missing partition", func(r *record.Record) { r.PartitionPath = "" }, "partition_path"},
		{"missing file id", func(r *record.Record) { r.FileID = "" }, "file_id"},
		{"unknown operation", func(r *record.Record) { r.Operation = "compact" }, "operation"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRecord()
			tc.mutate(&r)

			err := v.Validate(r)
			var validationErr *errors.ValidationError
			if !stderrors.As(err, &validationErr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if validationErr.Field != tc.field {
				t.Errorf("ValidationError.Field = %q, want %q", validationErr.Field, tc.field)
			}
		})
	}
}
