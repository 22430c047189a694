// Package encoder implements data file format encoders.
package encoder

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/lakeflow/tablesink/pkg/encoder"
	"github.com/lakeflow/tablesink/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// RecordParquet represents the Parquet schema for canonical records.
// Uses native Parquet types including TIMESTAMP_MICROS for time fields.
type RecordParquet struct {
	RecordKey     string    `parquet:"record_key,dict"`
	PartitionPath string    `parquet:"partition_path,dict"`
	FileID        string    `parquet:"file_id,dict"`
	Operation     string    `parquet:"operation,dict"`
	Payload       []byte    `parquet:"payload"`
	InstantTime   string    `parquet:"instant_time,dict"`
	WrittenAt     time.Time `parquet:"written_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar
// format. Supports multiple compression codecs: SNAPPY (default), GZIP,
// LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// EncodeBytes encodes records to a finished Parquet file in memory.
func (e *ParquetEncoder) EncodeBytes(records []record.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	writtenAt := time.Now().UTC()
	rows := make([]RecordParquet, len(records))
	for i, r := range records {
		rows[i] = RecordParquet{
			RecordKey:     r.Key,
			PartitionPath: r.PartitionPath,
			FileID:        r.FileID,
			Operation:     string(r.Operation),
			Payload:       r.Payload,
			InstantTime:   r.InstantTime,
			WrittenAt:     writtenAt,
		}
	}

	schema := parquet.SchemaOf(new(RecordParquet))

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[RecordParquet](
		&buf,
		schema,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("tablesink", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() encoder.FileFormat {
	return encoder.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
