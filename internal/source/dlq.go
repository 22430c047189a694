package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/lakeflow/tablesink/internal/errors"
	"github.com/lakeflow/tablesink/pkg/source"
)

// Ensure implementation satisfies interface at compile time.
var _ source.DLQPublisher = (*DLQPublisher)(nil)

// DLQMessage is the envelope published to the dead letter queue.
type DLQMessage struct {
	OriginalValue     json.RawMessage `json:"original_value"`
	OriginalTopic     string          `json:"original_topic"`
	OriginalPartition int32           `json:"original_partition"`
	OriginalOffset    int64           `json:"original_offset"`
	FailureReason     string          `json:"failure_reason"`
	FailureTimestamp  time.Time       `json:"failure_timestamp"`
	SinkID            string          `json:"sink_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
}

// DLQPublisher publishes undecodable messages to a dead letter queue.
type DLQPublisher struct {
	producer sarama.SyncProducer
	config   DLQConfig
	logger   *slog.Logger
	mu       sync.RWMutex
	closed   bool
	sinkID   string
}

// NewDLQPublisher creates a new DLQ publisher. A disabled publisher is
// returned as a no-op so callers never need a nil check.
func NewDLQPublisher(
	bootstrapServers []string,
	securityConfig Config,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	sinkID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return &DLQPublisher{
			config: dlqConfig,
			logger: logger,
			sinkID: sinkID,
			closed: true,
		}, nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Security configuration is shared with the consumer.
	if err := configureSecurity(saramaConfig, securityConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(bootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", bootstrapServers,
		"topic_suffix", dlqConfig.TopicSuffix,
	)

	return &DLQPublisher{
		producer: producer,
		config:   dlqConfig,
		logger:   logger,
		sinkID:   sinkID,
		closed:   false,
	}, nil
}

// Publish publishes a failed message to the DLQ.
func (p *DLQPublisher) Publish(
	ctx context.Context,
	raw []byte,
	metadata source.Metadata,
	reason string,
) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		if !p.config.Enabled {
			p.logger.Debug("DLQ disabled, skipping publish")
			return nil
		}
		return errors.ErrSourceClosed
	}

	dlqTopic := metadata.Topic + p.config.TopicSuffix

	dlqMessage := DLQMessage{
		OriginalValue:     raw,
		OriginalTopic:     metadata.Topic,
		OriginalPartition: metadata.Partition,
		OriginalOffset:    metadata.Offset,
		FailureReason:     reason,
		FailureTimestamp:  time.Now().UTC(),
		SinkID:            p.sinkID,
	}

	dlqData, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: dlqTopic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%s-%d-%d", metadata.Topic, metadata.Partition, metadata.Offset)),
		Value: sarama.ByteEncoder(dlqData),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("failure_reason"),
				Value: []byte(reason),
			},
			{
				Key:   []byte("original_topic"),
				Value: []byte(metadata.Topic),
			},
			{
				Key:   []byte("sink_id"),
				Value: []byte(p.sinkID),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", dlqTopic,
			"original_offset", metadata.Offset,
		)
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	p.logger.Info("published message to DLQ",
		"dlq_topic", dlqTopic,
		"partition", partition,
		"offset", offset,
		"reason", reason,
	)

	return nil
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.logger.Info("closing DLQ publisher")

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}

	p.logger.Info("DLQ publisher closed")
	return nil
}
