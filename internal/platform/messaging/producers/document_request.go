package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/messaging"
)

// DocumentRequestProducer publishes documents to the ingest topic for the document processor
type DocumentRequestProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewDocumentRequestProducer ensures the document topic exists and opens a writer on it.
// Writes are synchronous so the caller learns when a document could not be queued.
func NewDocumentRequestProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DocumentRequestProducer, error) {
	if cfg.DocumentTopic == "" {
		return nil, fmt.Errorf("kafka document topic is not configured")
	}

	if err := dialAndEnsureTopic(cfg.Brokers, cfg.DocumentTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure document topic %s exists: %w", cfg.DocumentTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(messaging.Brokers(cfg.Brokers)...),
		Topic:        cfg.DocumentTopic,
		Balancer:     &kafka.Hash{}, // same tenant, same partition
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
	}

	return &DocumentRequestProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.DocumentTopic,
	}, nil
}

// PublishDocumentRequest validates and queues the request keyed by tenant
func (p *DocumentRequestProducer) PublishDocumentRequest(ctx context.Context, req *shared.DocumentRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal document request: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(req.TenantID),
		Value: value,
		Headers: []kafka.Header{
			{Key: messaging.HeaderCorrelationID, Value: []byte(req.CorrelationID)},
			{Key: messaging.HeaderTenantID, Value: []byte(req.TenantID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish document request",
			"topic", p.topic,
			"request_id", req.RequestID.String(),
			"tenant_id", req.TenantID,
			"error", err,
		)
		return fmt.Errorf("failed to publish document request to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published document request",
		"topic", p.topic,
		"request_id", req.RequestID.String(),
		"correlation_id", req.CorrelationID,
	)
	return nil
}

func (p *DocumentRequestProducer) Close() error {
	p.logger.Info("Closing document request producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
