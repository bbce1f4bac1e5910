package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/invoice-reconciler/internal/document_processor/service"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/messaging"
	"github.com/invoice-reconciler/internal/platform/messaging/producers"
)

// DocumentEventHandler handles incoming document request messages from Kafka
type DocumentEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewDocumentEventHandler creates a new handler. producer may be nil when no DLQ is configured.
func NewDocumentEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *DocumentEventHandler {
	return &DocumentEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes one Kafka message. Malformed or invalid requests are parked
// on the DLQ and acknowledged; other failures are returned so the offset is not committed.
func (h *DocumentEventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var request shared.DocumentRequest
	if err := json.Unmarshal(msg.Value, &request); err != nil {
		return h.deadLetter(ctx, msg, fmt.Errorf("failed to unmarshal document request: %w", err))
	}

	if request.CorrelationID == "" {
		request.CorrelationID = messaging.Header(msg, messaging.HeaderCorrelationID)
	}
	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received document request",
		"request_id", request.RequestID.String(),
		"tenant_id", request.TenantID,
		"file_name", request.FileName,
	)

	if err := h.processingService.ProcessDocument(ctx, &request); err != nil {
		if errors.Is(err, service.ErrUnprocessable) {
			return h.deadLetter(ctx, msg, err)
		}
		logger.Error("Failed to process document request",
			"request_id", request.RequestID.String(),
			"error", err,
		)
		return fmt.Errorf("processing document request %s failed: %w", request.RequestID.String(), err)
	}

	return nil
}

// deadLetter parks msg and acknowledges it. Without a working DLQ the cause is returned.
func (h *DocumentEventHandler) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	h.logger.Error("Unprocessable document message",
		"message_key", string(msg.Key),
		"offset", msg.Offset,
		"error", cause,
	)

	if h.producer == nil {
		return cause
	}
	if err := h.producer.PublishToDLQ(ctx, msg, cause.Error()); err != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"original_error", cause,
			"message_key", string(msg.Key),
		)
		return cause
	}
	return nil
}
