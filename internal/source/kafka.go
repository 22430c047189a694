// Package source implements the Kafka record source and DLQ publishing.
package source

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"

	"github.com/lakeflow/tablesink/internal/errors"
	"github.com/lakeflow/tablesink/pkg/record"
	"github.com/lakeflow/tablesink/pkg/source"
)

// Ensure implementation satisfies interfaces at compile time.
var _ source.Source = (*KafkaSource)(nil)

// Config contains Kafka source configuration.
type Config struct {
	BootstrapServers    []string
	GroupID             string
	SecurityProtocol    string
	SASLMechanism       string
	SASLUsername        string
	SASLPassword        string
	AutoOffsetReset     string
	EnableAutoCommit    bool
	MaxPollIntervalMS   int
	SessionTimeoutMS    int
	HeartbeatIntervalMS int
}

// MetricsCollector defines metrics operations for the Kafka source.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition string)
	IncMessagesDLQ(topic string, reason string)
}

// wireRecord is the JSON envelope a located record travels in. The
// upstream index assigns partition_path and file_id before the record
// reaches this sink.
type wireRecord struct {
	RecordKey     string `json:"record_key"`
	PartitionPath string `json:"partition_path"`
	FileID        string `json:"file_id"`
	Operation     string `json:"operation"`
	Payload       []byte `json:"payload"`
	InstantTime   string `json:"instant_time,omitempty"`
}

// KafkaSource implements the source.Source interface using the Sarama
// library. It consumes located-record envelopes from a consumer group
// and decodes them into canonical records.
type KafkaSource struct {
	consumerGroup sarama.ConsumerGroup
	config        Config
	logger        *slog.Logger
	metrics       MetricsCollector
	dlq           source.DLQPublisher
	topics        []string
	ready         chan bool
	mu            sync.RWMutex
	closed        bool
}

// NewKafkaSource creates a new Kafka record source. The DLQ publisher
// may be nil, in which case undecodable messages are dropped with a log
// line only.
func NewKafkaSource(
	config Config,
	dlq source.DLQPublisher,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*KafkaSource, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(config.AutoOffsetReset)
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = config.EnableAutoCommit

	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMS) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatIntervalMS) * time.Millisecond

	if config.MaxPollIntervalMS > 0 {
		saramaConfig.Consumer.MaxProcessingTime = time.Duration(config.MaxPollIntervalMS) * time.Millisecond
	} else {
		saramaConfig.Consumer.MaxProcessingTime = 5 * time.Minute
	}

	saramaConfig.Consumer.Return.Errors = true

	if err := configureSecurity(saramaConfig, config); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	consumerGroup, err := sarama.NewConsumerGroup(
		config.BootstrapServers,
		config.GroupID,
		saramaConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("kafka source created",
		"group_id", config.GroupID,
		"bootstrap_servers", config.BootstrapServers,
		"session_timeout_ms", config.SessionTimeoutMS,
		"max_poll_interval_ms", config.MaxPollIntervalMS,
	)

	return &KafkaSource{
		consumerGroup: consumerGroup,
		config:        config,
		logger:        logger,
		metrics:       metrics,
		dlq:           dlq,
		ready:         make(chan bool),
		closed:        false,
	}, nil
}

// Subscribe subscribes to the specified topics.
func (s *KafkaSource) Subscribe(ctx context.Context, topics []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrSourceClosed
	}

	s.topics = topics
	s.logger.Info("subscribed to topics", "topics", topics)
	return nil
}

// Consume starts consuming records and returns channels for records and errors.
func (s *KafkaSource) Consume(ctx context.Context) (<-chan *source.ConsumedRecord, <-chan error, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, nil, errors.ErrSourceClosed
	}
	s.mu.RUnlock()

	recordChan := make(chan *source.ConsumedRecord, 100)
	errorChan := make(chan error, 10)

	handler := &groupHandler{
		source:     s,
		recordChan: recordChan,
		errorChan:  errorChan,
		ready:      s.ready,
	}

	go func() {
		defer close(recordChan)
		defer close(errorChan)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("source context cancelled")
				return
			default:
				if err := s.consumerGroup.Consume(ctx, s.topics, handler); err != nil {
					s.logger.Error("consumer group error", "error", err)
					errorChan <- err
					return
				}

				if ctx.Err() != nil {
					return
				}
			}
		}
	}()

	<-s.ready

	s.logger.Info("kafka source started and ready")
	return recordChan, errorChan, nil
}

// Close closes the source and releases resources.
func (s *KafkaSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.logger.Info("closing kafka source")

	if err := s.consumerGroup.Close(); err != nil {
		s.logger.Error("error closing consumer group", "error", err)
		return err
	}

	s.logger.Info("kafka source closed")
	return nil
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	source     *KafkaSource
	recordChan chan<- *source.ConsumedRecord
	errorChan  chan<- error
	ready      chan bool
	readyOnce  sync.Once
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.source.logger.Info("consumer group session setup",
		"member_id", session.MemberID(),
		"generation_id", session.GenerationID(),
		"claims", session.Claims(),
	)

	h.readyOnce.Do(func() {
		close(h.ready)
	})
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *groupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.source.logger.Info("consumer group session cleanup",
		"member_id", session.MemberID(),
	)
	return nil
}

// ConsumeClaim processes messages from a partition.
func (h *groupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	topic := claim.Topic()
	partition := claim.Partition()

	h.source.logger.Info("started consuming partition",
		"topic", topic,
		"partition", partition,
		"initial_offset", claim.InitialOffset(),
	)

	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			metadata := source.Metadata{
				Topic:     message.Topic,
				Partition: message.Partition,
				Offset:    message.Offset,
				Timestamp: message.Timestamp,
				Headers:   extractHeaders(message.Headers),
			}

			rec, err := decodeRecord(message.Value)
			if err != nil {
				h.source.logger.Error("failed to decode record envelope",
					"error", err,
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
				)
				h.source.routeToDLQ(session.Context(), message.Value, metadata, err.Error())
				// A poison message must not wedge the partition.
				session.MarkMessage(message, "")
				continue
			}

			consumed := &source.ConsumedRecord{
				Record:   rec,
				Metadata: metadata,
				Ack: func() error {
					session.MarkMessage(message, "")
					return nil
				},
			}

			select {
			case h.recordChan <- consumed:
				if h.source.metrics != nil {
					h.source.metrics.IncMessagesConsumed(
						message.Topic,
						strconv.Itoa(int(message.Partition)),
					)
				}
			case <-session.Context().Done():
				return nil
			}

		case <-session.Context().Done():
			h.source.logger.Info("session context done, stopping partition consumption",
				"topic", topic,
				"partition", partition,
			)
			return nil
		}
	}
}

// routeToDLQ forwards an undecodable message to the DLQ if one is
// configured.
func (s *KafkaSource) routeToDLQ(ctx context.Context, raw []byte, metadata source.Metadata, reason string) {
	if s.metrics != nil {
		s.metrics.IncMessagesDLQ(metadata.Topic, "decode_failure")
	}
	if s.dlq == nil {
		return
	}
	if err := s.dlq.Publish(ctx, raw, metadata, reason); err != nil {
		s.logger.Error("failed to publish to DLQ",
			"error", err,
			"topic", metadata.Topic,
			"offset", metadata.Offset,
		)
	}
}

// decodeRecord parses a located-record envelope into a canonical record.
func decodeRecord(value []byte) (record.Record, error) {
	var wire wireRecord
	if err := json.Unmarshal(value, &wire); err != nil {
		return record.Record{}, fmt.Errorf("failed to unmarshal record envelope: %w", err)
	}

	op, err := record.ParseOperation(wire.Operation)
	if err != nil {
		return record.Record{}, err
	}

	return record.Record{
		Key:           wire.RecordKey,
		PartitionPath: wire.PartitionPath,
		FileID:        wire.FileID,
		Operation:     op,
		Payload:       wire.Payload,
		InstantTime:   wire.InstantTime,
	}, nil
}

// extractHeaders extracts headers from a Kafka message.
func extractHeaders(headers []*sarama.RecordHeader) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		result[string(header.Key)] = string(header.Value)
	}
	return result
}

// MSKAccessTokenProvider implements sarama.AccessTokenProvider for AWS MSK IAM authentication.
type MSKAccessTokenProvider struct {
	region string
}

// Token generates an AWS MSK IAM authentication token.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token: token,
		Extensions: map[string]string{
			"expiry": fmt.Sprintf("%d", expiryMs),
		},
	}, nil
}

// offsetInitial converts the AutoOffsetReset config to Sarama's offset constant.
func offsetInitial(autoOffsetReset string) int64 {
	switch autoOffsetReset {
	case "earliest":
		return sarama.OffsetOldest
	case "latest":
		return sarama.OffsetNewest
	default:
		return sarama.OffsetNewest
	}
}

func configureSecurity(config *sarama.Config, srcConfig Config) error {
	switch srcConfig.SecurityProtocol {
	case "PLAINTEXT":
		return nil

	case "SASL_PLAINTEXT", "SASL_SSL":
		config.Net.SASL.Enable = true

		switch srcConfig.SASLMechanism {
		case "PLAIN":
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
			config.Net.SASL.User = srcConfig.SASLUsername
			config.Net.SASL.Password = srcConfig.SASLPassword

		case "SCRAM-SHA-256":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			config.Net.SASL.User = srcConfig.SASLUsername
			config.Net.SASL.Password = srcConfig.SASLPassword
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA256()}
			}

		case "SCRAM-SHA-512":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			config.Net.SASL.User = srcConfig.SASLUsername
			config.Net.SASL.Password = srcConfig.SASLPassword
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA512()}
			}

		case "AWS_MSK_IAM":
			config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
			config.Net.SASL.Enable = true

			// OAuth does not use username/password, but Sarama requires
			// them to be set to pass validation.
			config.Net.SASL.User = "token"
			config.Net.SASL.Password = "token"

			config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{
				region: "us-east-1",
			}

		default:
			return fmt.Errorf("unsupported SASL mechanism: %s", srcConfig.SASLMechanism)
		}

		if srcConfig.SecurityProtocol == "SASL_SSL" {
			config.Net.TLS.Enable = true
			config.Net.TLS.Config = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

	case "SSL":
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

	default:
		return fmt.Errorf("unsupported security protocol: %s", srcConfig.SecurityProtocol)
	}

	return nil
}
