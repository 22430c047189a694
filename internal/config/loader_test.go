package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const minimalConfig = `
kafka:
  bootstrap_servers:
    - localhost:9092
  consumer:
    group_id: tablesink-test
    topics:
      - located-records
table:
  name: events
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := NewLoader().Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sink.Operation != "upsert" {
		t.Errorf("Sink.Operation = %q, want upsert", cfg.Sink.Operation)
	}
	if cfg.Sink.BatchSizeMB != 256 {
		t.Errorf("Sink.BatchSizeMB = %d, want 256", cfg.Sink.BatchSizeMB)
	}
	if cfg.Sink.TaskMaxSizeMB != 1024 {
		t.Errorf("Sink.TaskMaxSizeMB = %d, want 1024", cfg.Sink.TaskMaxSizeMB)
	}
	if got := cfg.Sink.CheckpointInterval(); got != time.Minute {
		t.Errorf("CheckpointInterval() = %v, want 1m", got)
	}
	if got := cfg.Sink.ConfirmationTimeout(); got != 5*time.Minute {
		t.Errorf("ConfirmationTimeout() = %v, want 5m", got)
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %q, want file", cfg.Storage.Backend)
	}
	if cfg.Storage.Format != "parquet" {
		t.Errorf("Storage.Format = %q, want parquet", cfg.Storage.Format)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	cfg, err := NewLoader().Load(writeConfig(t, minimalConfig+`
sink:
  operation: insert
  batch_size_mb: 64
  task_max_size_mb: 512
  pre_combine: true
storage:
  backend: s3
  format: avro
  s3:
    bucket: lake-bucket
    region: eu-west-1
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sink.Operation != "insert" {
		t.Errorf("Sink.Operation = %q, want insert", cfg.Sink.Operation)
	}
	if got := cfg.Sink.BatchSizeBytes(); got != 64*1024*1024 {
		t.Errorf("BatchSizeBytes() = %d, want %d", got, 64*1024*1024)
	}
	if !cfg.Sink.PreCombine {
		t.Error("Sink.PreCombine = false, want true")
	}
	if cfg.Storage.S3.Bucket != "lake-bucket" {
		t.Errorf("Storage.S3.Bucket = %q, want lake-bucket", cfg.Storage.S3.Bucket)
	}
}

func TestLoadRejectsCeilingBelowBatchSize(t *testing.T) {
	_, err := NewLoader().Load(writeConfig(t, minimalConfig+`
sink:
  batch_size_mb: 512
  task_max_size_mb: 256
`))
	if err == nil {
		t.Error("Load() error = nil, want validation failure")
	}
}

func TestLoadRejectsUnknownOperation(t *testing.T) {
	_, err := NewLoader().Load(writeConfig(t, minimalConfig+`
sink:
  operation: compact
`))
	if err == nil {
		t.Error("Load() error = nil, want validation failure")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := NewLoader().Load(writeConfig(t, minimalConfig+`
storage:
  backend: hdfs
`))
	if err == nil {
		t.Error("Load() error = nil, want validation failure")
	}
}

func TestLoadExpandsEnvironmentReferences(t *testing.T) {
	t.Setenv("TEST_SASL_PASSWORD", "s3cret")

	cfg, err := NewLoader().Load(writeConfig(t, `
kafka:
  bootstrap_servers:
    - localhost:9092
  sasl_password: ${TEST_SASL_PASSWORD}
  consumer:
    group_id: tablesink-test
    topics:
      - located-records
table:
  name: events
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kafka.SASLPassword != "s3cret" {
		t.Errorf("SASLPassword = %q, want s3cret", cfg.Kafka.SASLPassword)
	}
}
