package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/messaging/producers"
	"github.com/invoice-reconciler/internal/platform/ocr"
	"github.com/invoice-reconciler/internal/reconciliation"
)

// TextInput is OCR text uploaded by a client that ran recognition itself
type TextInput struct {
	TenantID      string
	FileName      string
	RawText       string
	OCRConfidence float64
	CorrelationID string
}

// ScanInput is an image the gateway should recognize
type ScanInput struct {
	TenantID      string
	FileName      string
	Image         []byte
	CorrelationID string
}

// DocumentServiceImpl implements the DocumentService interface
type DocumentServiceImpl struct {
	workflow  Workflow
	ocr       ocr.Extractor
	publisher producers.DocumentRequestPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewDocumentService creates a document service. extractor and publisher may be nil,
// which disables the scan and ingest operations.
func NewDocumentService(logger *slog.Logger, workflow Workflow, extractor ocr.Extractor, publisher producers.DocumentRequestPublisher) DocumentService {
	return &DocumentServiceImpl{
		workflow:  workflow,
		ocr:       extractor,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *DocumentServiceImpl) ProcessText(ctx context.Context, input TextInput) (*reconciliation.Result, error) {
	return s.workflow.ProcessDocument(ctx,
		reconciliation.Document{
			RawText:       input.RawText,
			OCRConfidence: input.OCRConfidence,
			FileName:      input.FileName,
		},
		reconciliation.Metadata{
			TenantID:      input.TenantID,
			CorrelationID: input.CorrelationID,
			ProcessedAt:   s.now(),
		},
	)
}

// ProcessScan recognizes the image and reconciles its text. The engine summary is
// archived with the raw document.
func (s *DocumentServiceImpl) ProcessScan(ctx context.Context, input ScanInput) (*reconciliation.Result, error) {
	if s.ocr == nil {
		return nil, ErrOCRDisabled
	}
	if input.TenantID == "" {
		return nil, shared.ErrMissingTenant
	}

	recognized, err := s.ocr.ExtractText(ctx, input.Image)
	if err != nil {
		s.logger.Error("OCR failed",
			"file_name", input.FileName,
			"correlation_id", input.CorrelationID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to recognize %s: %w", input.FileName, err)
	}

	s.logger.Info("Document recognized",
		"file_name", input.FileName,
		"lines", recognized.Lines,
		"confidence", recognized.Confidence,
		"correlation_id", input.CorrelationID,
	)

	return s.workflow.ProcessDocument(ctx,
		reconciliation.Document{
			RawText:       recognized.FullText,
			OCRConfidence: recognized.Confidence,
			FileName:      input.FileName,
			Logos:         recognized.Logos,
			Payload: map[string]interface{}{
				"language": recognized.Language,
				"lines":    recognized.Lines,
			},
		},
		reconciliation.Metadata{
			TenantID:      input.TenantID,
			CorrelationID: input.CorrelationID,
			ProcessedAt:   s.now(),
		},
	)
}

// Ingest assigns a request id when missing and publishes the request
func (s *DocumentServiceImpl) Ingest(ctx context.Context, request *shared.DocumentRequest) error {
	if s.publisher == nil {
		return ErrIngestDisabled
	}
	if request.RequestID == uuid.Nil {
		request.RequestID = uuid.New()
	}
	if request.Timestamp.IsZero() {
		request.Timestamp = s.now()
	}
	if err := request.Validate(); err != nil {
		return err
	}

	if err := s.publisher.PublishDocumentRequest(ctx, request); err != nil {
		s.logger.Error("Failed to publish document request",
			"request_id", request.RequestID.String(),
			"tenant_id", request.TenantID,
			"error", err,
		)
		return fmt.Errorf("failed to queue document: %w", err)
	}

	s.logger.Info("Document request queued",
		"request_id", request.RequestID.String(),
		"tenant_id", request.TenantID,
		"correlation_id", request.CorrelationID,
	)
	return nil
}
