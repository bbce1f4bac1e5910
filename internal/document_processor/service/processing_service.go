package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/reconciliation"
)

// ErrUnprocessable marks requests that will fail on every redelivery
var ErrUnprocessable = errors.New("document request cannot be processed")

type ProcessingServiceImpl struct {
	workflow DocumentWorkflow
	logger   *slog.Logger
}

func NewProcessingService(workflow DocumentWorkflow, logger *slog.Logger) ProcessingService {
	return &ProcessingServiceImpl{
		workflow: workflow,
		logger:   logger,
	}
}

// ProcessDocument runs the reconciliation workflow for a queued document.
// Invalid requests wrap ErrUnprocessable; a duplicate already in flight is acknowledged.
func (s *ProcessingServiceImpl) ProcessDocument(ctx context.Context, request *shared.DocumentRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	if err := request.Validate(); err != nil {
		logger.Warn("Rejecting invalid document request", "request_id", request.RequestID.String(), "error", err)
		return fmt.Errorf("%w: %w", ErrUnprocessable, err)
	}

	logger.Info("Processing document", "request_id", request.RequestID.String(), "tenant_id", request.TenantID)

	result, err := s.workflow.ProcessDocument(ctx,
		reconciliation.Document{
			RawText:       request.RawText,
			OCRConfidence: request.OCRConfidence,
			FileName:      request.FileName,
		},
		reconciliation.Metadata{
			TenantID:      request.TenantID,
			CorrelationID: request.CorrelationID,
			ProcessedAt:   request.Timestamp,
		},
	)
	if err != nil {
		if errors.Is(err, reconciliation.ErrReconciliationInProgress) {
			logger.Info("Identical document already in flight, skipping", "request_id", request.RequestID.String())
			return nil
		}
		if errors.Is(err, shared.ErrMissingTenant) {
			return fmt.Errorf("%w: %w", ErrUnprocessable, err)
		}
		logger.Error("Failed to process document", "request_id", request.RequestID.String(), "error", err)
		return fmt.Errorf("failed to process document %s: %w", request.RequestID, err)
	}

	logger.Info("Document processed",
		"request_id", request.RequestID.String(),
		"invoice_id", result.Invoice.ID.String(),
		"status", string(result.Invoice.Status),
	)
	return nil
}
