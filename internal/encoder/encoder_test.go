package encoder

import (
	"bytes"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/parquet-go/parquet-go"

	pkgencoder "github.com/lakeflow/tablesink/pkg/encoder"
	"github.com/lakeflow/tablesink/pkg/record"
)

func sampleRecords() []record.Record {
	return []record.Record{
		{
			Key:           "k1",
			PartitionPath: "dt=2024-01-02",
			FileID:        "f1",
			Operation:     record.OpUpsert,
			Payload:       []byte(`{"id":1}`),
			InstantTime:   "20240102030405678",
		},
		{
			Key:           "k2",
			PartitionPath: "dt=2024-01-02",
			FileID:        "f1",
			Operation:     record.OpDelete,
			Payload:       nil,
		},
	}
}

func TestParquetEncodeRoundTrip(t *testing.T) {
	enc := NewParquetEncoder("snappy")

	data, err := enc.EncodeBytes(sampleRecords())
	if err != nil {
		t.Fatalf("EncodeBytes() error = %v", err)
	}

	rows, err := parquet.Read[RecordParquet](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parquet.Read() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].RecordKey != "k1" || rows[0].Operation != "upsert" {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[1].RecordKey != "k2" || rows[1].Operation != "delete" {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestParquetEncodeEmptyBatch(t *testing.T) {
	enc := NewParquetEncoder("snappy")
	if _, err := enc.EncodeBytes(nil); err == nil {
		t.Error("EncodeBytes(nil) error = nil, want error")
	}
}

func TestAvroEncodeRoundTrip(t *testing.T) {
	enc, err := NewAvroEncoder("snappy")
	if err != nil {
		t.Fatalf("NewAvroEncoder() error = %v", err)
	}

	data, err := enc.EncodeBytes(sampleRecords())
	if err != nil {
		t.Fatalf("EncodeBytes() error = %v", err)
	}

	reader, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewOCFReader() error = %v", err)
	}

	var keys []string
	for reader.Scan() {
		datum, err := reader.Read()
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		row := datum.(map[string]interface{})
		keys = append(keys, row["record_key"].(string))
	}
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Errorf("keys = %v, want [k1 k2]", keys)
	}
}

func TestFactoryCreatesConfiguredEncoder(t *testing.T) {
	cases := []struct {
		format    pkgencoder.FileFormat
		extension string
	}{
		{pkgencoder.FormatParquet, ".parquet"},
		{pkgencoder.FormatAvro, ".avro"},
	}

	for _, tc := range cases {
		enc, err := NewFactory(tc.format, "snappy").CreateEncoder()
		if err != nil {
			t.Fatalf("CreateEncoder(%s) error = %v", tc.format, err)
		}
		if enc.Format() != tc.format {
			t.Errorf("Format() = %s, want %s", enc.Format(), tc.format)
		}
		if enc.FileExtension() != tc.extension {
			t.Errorf("FileExtension() = %s, want %s", enc.FileExtension(), tc.extension)
		}
	}
}

func TestFactoryRejectsUnknownFormat(t *testing.T) {
	if _, err := NewFactory("orc", "snappy").CreateEncoder(); err == nil {
		t.Error("CreateEncoder(orc) error = nil, want error")
	}
}
