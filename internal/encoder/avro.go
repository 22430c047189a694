// Package encoder implements data file format encoders.
package encoder

import (
	"bytes"
	"fmt"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/lakeflow/tablesink/pkg/encoder"
	"github.com/lakeflow/tablesink/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// Produces OCF (Object Container File) output compatible with Apache
// Spark and other Avro readers; the OCF block codec handles compression.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for data file records.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "DataFileRecord",
		"namespace": "io.lakeflow.tablesink",
		"fields": [
			{"name": "record_key", "type": "string"},
			{"name": "partition_path", "type": "string"},
			{"name": "file_id", "type": "string"},
			{"name": "operation", "type": "string"},
			{"name": "payload", "type": "bytes"},
			{"name": "instant_time", "type": "string"},
			{"name": "written_at", "type": "string"}
		]
	}`
}

// ocfCompression maps the configured compression to an OCF block codec.
func ocfCompression(compression string) string {
	switch compression {
	case "snappy", "SNAPPY":
		return goavro.CompressionSnappyLabel
	case "deflate", "DEFLATE", "gzip", "GZIP":
		return goavro.CompressionDeflateLabel
	default:
		return goavro.CompressionNullLabel
	}
}

// EncodeBytes encodes records to a finished Avro OCF file in memory.
func (e *AvroEncoder) EncodeBytes(records []record.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &buf,
		Codec:           e.codec,
		CompressionName: ocfCompression(e.compression),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	writtenAt := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range records {
		payload := r.Payload
		if payload == nil {
			payload = []byte{}
		}
		avroMap := map[string]interface{}{
			"record_key":     r.Key,
			"partition_path": r.PartitionPath,
			"file_id":        r.FileID,
			"operation":      string(r.Operation),
			"payload":        payload,
			"instant_time":   r.InstantTime,
			"written_at":     writtenAt,
		}
		if err := ocfWriter.Append([]interface{}{avroMap}); err != nil {
			return nil, fmt.Errorf("failed to write record: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// Format returns the file format.
func (e *AvroEncoder) Format() encoder.FileFormat {
	return encoder.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	return ".avro"
}
