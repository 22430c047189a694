package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Table         TableConfig         `mapstructure:"table"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Sink          SinkConfig          `mapstructure:"sink"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
}

// TableConfig identifies the target table
type TableConfig struct {
	Name string `mapstructure:"name"`
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend     string      `mapstructure:"backend"`
	Format      string      `mapstructure:"format"`
	Compression string      `mapstructure:"compression"`
	BasePath    string      `mapstructure:"base_path"`
	S3          S3Config    `mapstructure:"s3"`
	Azure       AzureConfig `mapstructure:"azure"`
	GCS         GCSConfig   `mapstructure:"gcs"`
	File        FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// SinkConfig contains the write-buffering and commit options
type SinkConfig struct {
	TaskID                     int    `mapstructure:"task_id"`
	Operation                  string `mapstructure:"operation"`
	BatchSizeMB                int64  `mapstructure:"batch_size_mb"`
	TaskMaxSizeMB              int64  `mapstructure:"task_max_size_mb"`
	PreCombine                 bool   `mapstructure:"pre_combine"`
	CheckpointIntervalSeconds  int    `mapstructure:"checkpoint_interval_seconds"`
	ConfirmationTimeoutSeconds int    `mapstructure:"confirmation_timeout_seconds"`
}

// BatchSizeBytes returns the per-bucket flush threshold in bytes.
func (c SinkConfig) BatchSizeBytes() int64 {
	return c.BatchSizeMB * 1024 * 1024
}

// TaskMaxSizeBytes returns the global buffer ceiling in bytes.
func (c SinkConfig) TaskMaxSizeBytes() int64 {
	return c.TaskMaxSizeMB * 1024 * 1024
}

// CheckpointInterval returns the checkpoint interval as a duration.
func (c SinkConfig) CheckpointInterval() time.Duration {
	return time.Duration(c.CheckpointIntervalSeconds) * time.Second
}

// ConfirmationTimeout returns the confirmation timeout as a duration.
func (c SinkConfig) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutSeconds) * time.Second
}

// ObservabilityConfig contains logging, metrics and health configuration
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics server configuration
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// HealthConfig contains health server configuration
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// ShutdownConfig contains graceful shutdown configuration
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// Validate performs basic sanity checks not covered by the loader.
func (c *ApplicationConfig) Validate() error {
	if len(c.Kafka.BootstrapServers) == 0 {
		return fmt.Errorf("kafka.bootstrap_servers must not be empty")
	}
	if len(c.Kafka.Consumer.Topics) == 0 {
		return fmt.Errorf("kafka.consumer.topics must not be empty")
	}
	if c.Kafka.Consumer.GroupID == "" {
		return fmt.Errorf("kafka.consumer.group_id must not be empty")
	}
	if c.Table.Name == "" {
		return fmt.Errorf("table.name must not be empty")
	}
	if c.Sink.BatchSizeMB <= 0 {
		return fmt.Errorf("sink.batch_size_mb must be positive")
	}
	if c.Sink.TaskMaxSizeMB <= c.Sink.BatchSizeMB {
		return fmt.Errorf("sink.task_max_size_mb (%d) must exceed sink.batch_size_mb (%d)",
			c.Sink.TaskMaxSizeMB, c.Sink.BatchSizeMB)
	}
	if c.Sink.CheckpointIntervalSeconds <= 0 {
		return fmt.Errorf("sink.checkpoint_interval_seconds must be positive")
	}
	if c.Sink.ConfirmationTimeoutSeconds <= 0 {
		return fmt.Errorf("sink.confirmation_timeout_seconds must be positive")
	}
	return nil
}
