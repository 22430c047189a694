package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lakeflow/tablesink/internal/applier"
	"github.com/lakeflow/tablesink/internal/buffer"
	"github.com/lakeflow/tablesink/internal/config"
	"github.com/lakeflow/tablesink/internal/config/dto"
	"github.com/lakeflow/tablesink/internal/coordinator"
	"github.com/lakeflow/tablesink/internal/encoder"
	"github.com/lakeflow/tablesink/internal/gateway"
	"github.com/lakeflow/tablesink/internal/objstore"
	"github.com/lakeflow/tablesink/internal/observability"
	"github.com/lakeflow/tablesink/internal/server"
	internalsource "github.com/lakeflow/tablesink/internal/source"
	"github.com/lakeflow/tablesink/internal/validator"
	pkgencoder "github.com/lakeflow/tablesink/pkg/encoder"
	pkgobjstore "github.com/lakeflow/tablesink/pkg/objstore"
	"github.com/lakeflow/tablesink/pkg/record"
	"github.com/lakeflow/tablesink/pkg/source"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Load configuration
	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize observability
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	logger.Info("starting table sink",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"table", cfg.Table.Name,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, fn)
		logger.Debug("registered cleanup", "component", name)
	}

	operation, err := record.ParseOperation(cfg.Sink.Operation)
	if err != nil {
		return err
	}

	// Initialize storage backend and table layout
	store, err := newObjectWriter(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create object writer: %w", err)
	}
	addCleanup("object-writer", store.Close)

	layout := objstore.NewLayout(cfg.Storage.BasePath, cfg.Table.Name)

	// Initialize data file encoder
	encFactory := encoder.NewFactory(pkgencoder.FileFormat(cfg.Storage.Format), cfg.Storage.Compression)
	enc, err := encFactory.CreateEncoder()
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	// Initialize the embedded coordinator and the commit gateway
	coord := coordinator.New(store, layout, logger, metrics)
	gw := gateway.New(coord, cfg.Sink.ConfirmationTimeout(), logger)
	coord.Bind(gw)

	// Initialize the write applier and the buffer manager
	app, err := applier.New(operation, cfg.Sink.TaskID, layout, enc, store, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create applier: %w", err)
	}
	addCleanup("applier", app.Close)

	mgr, err := buffer.NewManager(buffer.Config{
		TaskID:             cfg.Sink.TaskID,
		Operation:          operation,
		BatchSizeBytes:     cfg.Sink.BatchSizeBytes(),
		MaxBufferSizeBytes: cfg.Sink.TaskMaxSizeBytes(),
		PreCombine:         cfg.Sink.PreCombine,
	}, app, coord, gw, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create buffer manager: %w", err)
	}

	// Initialize the Kafka source and its DLQ
	sourceConfig := internalsource.Config{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
	}

	dlqPublisher, err := internalsource.NewDLQPublisher(
		cfg.Kafka.BootstrapServers,
		sourceConfig,
		internalsource.DLQConfig{
			Enabled:     cfg.Kafka.DLQ.Enabled,
			TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
		},
		logger,
		cfg.Application.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlqPublisher.Close)

	src, err := internalsource.NewKafkaSource(sourceConfig, dlqPublisher, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create kafka source: %w", err)
	}
	addCleanup("kafka-source", src.Close)

	// Initialize health and metrics servers
	health := server.NewSinkHealth(gw)
	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		health,
		registry,
		logger,
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP servers: %w", err)
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := src.Subscribe(ctx, cfg.Kafka.Consumer.Topics); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	recordChan, errorChan, err := src.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	runErr := processRecords(ctx, cfg, logger, mgr, gw, health, recordChan, errorChan)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Shutdown.GracePeriodSeconds)*time.Second,
	)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down HTTP servers", "error", err)
	}

	for i := len(cleanupFuncs) - 1; i >= 0; i-- {
		if err := cleanupFuncs[i](); err != nil {
			logger.Error("cleanup error", "error", err)
		}
	}

	logger.Info("table sink stopped")
	return runErr
}

// processRecords is the single-goroutine driving loop of the sink. All
// buffering and flushing happens here; the checkpoint ticker and the
// record stream are serialized by the select, which is what lets the
// buffer manager run without locks.
func processRecords(
	ctx context.Context,
	cfg *dto.ApplicationConfig,
	logger *slog.Logger,
	mgr *buffer.Manager,
	gw *gateway.Gateway,
	health *server.SinkHealth,
	recordChan <-chan *source.ConsumedRecord,
	errorChan <-chan error,
) error {
	recordValidator := validator.NewRecordValidator()

	ticker := time.NewTicker(cfg.Sink.CheckpointInterval())
	defer ticker.Stop()

	// Offsets are acknowledged only after the checkpoint that covers
	// them commits, so a restart replays uncommitted records instead of
	// losing them.
	var pendingAcks []func() error

	checkpoint := func(endOfInput bool) error {
		if err := mgr.FlushAll(ctx, endOfInput); err != nil {
			return err
		}
		if err := gw.WaitReady(ctx); err != nil {
			return err
		}
		for _, ack := range pendingAcks {
			if err := ack(); err != nil {
				logger.Error("failed to acknowledge offset", "error", err)
			}
		}
		pendingAcks = pendingAcks[:0]
		return nil
	}

	for {
		select {
		case consumed, ok := <-recordChan:
			if !ok {
				logger.Info("record stream closed, draining buffers")
				if err := checkpoint(true); err != nil {
					health.MarkDead()
					return err
				}
				return nil
			}

			if err := recordValidator.Validate(consumed.Record); err != nil {
				logger.Error("dropping invalid record",
					"error", err,
					"topic", consumed.Metadata.Topic,
					"offset", consumed.Metadata.Offset,
				)
				pendingAcks = append(pendingAcks, consumed.Ack)
				continue
			}

			if err := mgr.Ingest(ctx, consumed.Record); err != nil {
				health.MarkDead()
				return fmt.Errorf("ingest failed: %w", err)
			}
			pendingAcks = append(pendingAcks, consumed.Ack)

		case <-ticker.C:
			if err := checkpoint(false); err != nil {
				health.MarkDead()
				return fmt.Errorf("checkpoint failed: %w", err)
			}

		case err, ok := <-errorChan:
			if ok && err != nil {
				health.MarkDead()
				return fmt.Errorf("source error: %w", err)
			}

		case <-ctx.Done():
			logger.Info("shutdown requested, draining buffers")
			// The parent context is cancelled, so the final drain runs
			// on its own bounded context.
			drainCtx, cancel := context.WithTimeout(
				context.Background(),
				time.Duration(cfg.Shutdown.GracePeriodSeconds)*time.Second,
			)
			err := mgr.FlushAll(drainCtx, true)
			if err == nil {
				err = gw.WaitReady(drainCtx)
			}
			cancel()
			if err != nil {
				health.MarkDead()
				return fmt.Errorf("final drain failed: %w", err)
			}
			for _, ack := range pendingAcks {
				if ackErr := ack(); ackErr != nil {
					logger.Error("failed to acknowledge offset", "error", ackErr)
				}
			}
			return nil
		}
	}
}

// newObjectWriter creates the configured object storage backend.
func newObjectWriter(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (pkgobjstore.Writer, error) {
	switch cfg.Storage.Backend {
	case "file":
		return objstore.NewFileWriter(objstore.FileConfig{
			BasePath: cfg.Storage.File.BasePath,
		}, logger, metrics)
	case "s3":
		return objstore.NewS3Writer(objstore.S3Config{
			Bucket:       cfg.Storage.S3.Bucket,
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			SSEEnabled:   cfg.Storage.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Storage.S3.SSEKMSKeyID,
		}, logger, metrics)
	case "azure":
		return objstore.NewAzureWriter(objstore.AzureConfig{
			AccountName:   cfg.Storage.Azure.AccountName,
			AccountKey:    cfg.Storage.Azure.AccountKey,
			ContainerName: cfg.Storage.Azure.Container,
			Endpoint:      cfg.Storage.Azure.Endpoint,
		}, logger, metrics)
	case "gcs":
		return objstore.NewGCSWriter(objstore.GCSConfig{
			Bucket:               cfg.Storage.GCS.Bucket,
			ProjectID:            cfg.Storage.GCS.ProjectID,
			CredentialsFile:      cfg.Storage.GCS.CredentialsFile,
			CredentialsJSON:      cfg.Storage.GCS.CredentialsJSON,
			Endpoint:             cfg.Storage.GCS.Endpoint,
			UseDefaultCredential: cfg.Storage.GCS.UseDefaultCredential,
		}, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}
