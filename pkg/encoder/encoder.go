// Package encoder defines interfaces for encoding record batches to data
// file formats.
package encoder

import "github.com/lakeflow/tablesink/pkg/record"

// FileFormat represents the data file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// Encoder encodes one bucket batch to a specific file format.
type Encoder interface {
	// EncodeBytes encodes records and returns the finished file contents.
	EncodeBytes(records []record.Record) ([]byte, error)

	// Format returns the file format this encoder produces.
	Format() FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
