package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/ocr"
	"github.com/invoice-reconciler/internal/reconciliation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDocumentServiceImpl_ProcessText(t *testing.T) {
	ctx := context.Background()
	workflow := new(MockWorkflow)
	svc := NewDocumentService(newTestLogger(), workflow, nil, nil)

	expected := &reconciliation.Result{Invoice: invoice.NewInvoice("acme", fixedNow)}
	workflow.On("ProcessDocument", ctx,
		mock.MatchedBy(func(doc reconciliation.Document) bool {
			return doc.RawText == "Invoice #42" && doc.OCRConfidence == 0.8 && doc.FileName == "scan.pdf"
		}),
		mock.MatchedBy(func(meta reconciliation.Metadata) bool {
			return meta.TenantID == "acme" && meta.CorrelationID == "corr-1" && !meta.ProcessedAt.IsZero()
		}),
	).Return(expected, nil).Once()

	result, err := svc.ProcessText(ctx, TextInput{
		TenantID:      "acme",
		FileName:      "scan.pdf",
		RawText:       "Invoice #42",
		OCRConfidence: 0.8,
		CorrelationID: "corr-1",
	})

	require.NoError(t, err)
	assert.Same(t, expected, result)
	workflow.AssertExpectations(t)
}

func TestDocumentServiceImpl_ProcessScan(t *testing.T) {
	ctx := context.Background()
	image := []byte{0x89, 0x50, 0x4e, 0x47}

	t.Run("Success", func(t *testing.T) {
		workflow := new(MockWorkflow)
		extractor := new(MockExtractor)
		svc := NewDocumentService(newTestLogger(), workflow, extractor, nil)

		extractor.On("ExtractText", ctx, image).Return(&ocr.Result{
			FullText:   "ACME GmbH\nInvoice #7",
			Confidence: 0.93,
			Language:   "en",
			Lines:      2,
		}, nil).Once()

		expected := &reconciliation.Result{Invoice: invoice.NewInvoice("acme", fixedNow)}
		workflow.On("ProcessDocument", ctx,
			mock.MatchedBy(func(doc reconciliation.Document) bool {
				return doc.RawText == "ACME GmbH\nInvoice #7" &&
					doc.OCRConfidence == 0.93 &&
					doc.FileName == "invoice.png" &&
					doc.Payload["language"] == "en"
			}),
			mock.MatchedBy(func(meta reconciliation.Metadata) bool { return meta.TenantID == "acme" }),
		).Return(expected, nil).Once()

		result, err := svc.ProcessScan(ctx, ScanInput{TenantID: "acme", FileName: "invoice.png", Image: image})

		require.NoError(t, err)
		assert.Same(t, expected, result)
		extractor.AssertExpectations(t)
		workflow.AssertExpectations(t)
	})

	t.Run("OCRDisabled", func(t *testing.T) {
		svc := NewDocumentService(newTestLogger(), new(MockWorkflow), nil, nil)

		_, err := svc.ProcessScan(ctx, ScanInput{TenantID: "acme", Image: image})

		assert.ErrorIs(t, err, ErrOCRDisabled)
	})

	t.Run("MissingTenant", func(t *testing.T) {
		extractor := new(MockExtractor)
		svc := NewDocumentService(newTestLogger(), new(MockWorkflow), extractor, nil)

		_, err := svc.ProcessScan(ctx, ScanInput{Image: image})

		assert.ErrorIs(t, err, shared.ErrMissingTenant)
		extractor.AssertNotCalled(t, "ExtractText", mock.Anything, mock.Anything)
	})

	t.Run("OCRFailure", func(t *testing.T) {
		workflow := new(MockWorkflow)
		extractor := new(MockExtractor)
		svc := NewDocumentService(newTestLogger(), workflow, extractor, nil)

		extractor.On("ExtractText", ctx, []byte(nil)).Return(nil, ocr.ErrEmptyImage).Once()

		_, err := svc.ProcessScan(ctx, ScanInput{TenantID: "acme", FileName: "empty.png"})

		assert.ErrorIs(t, err, ocr.ErrEmptyImage)
		workflow.AssertNotCalled(t, "ProcessDocument", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDocumentServiceImpl_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		publisher := new(MockPublisher)
		svc := NewDocumentService(newTestLogger(), new(MockWorkflow), nil, publisher)

		publisher.On("PublishDocumentRequest", ctx, mock.MatchedBy(func(req *shared.DocumentRequest) bool {
			return req.RequestID != uuid.Nil && !req.Timestamp.IsZero() && req.TenantID == "acme"
		})).Return(nil).Once()

		req := &shared.DocumentRequest{TenantID: "acme", RawText: "Invoice #1"}
		err := svc.Ingest(ctx, req)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, req.RequestID)
		publisher.AssertExpectations(t)
	})

	t.Run("KeepsProvidedRequestID", func(t *testing.T) {
		publisher := new(MockPublisher)
		svc := NewDocumentService(newTestLogger(), new(MockWorkflow), nil, publisher)
		requestID := uuid.New()

		publisher.On("PublishDocumentRequest", ctx, mock.Anything).Return(nil).Once()

		req := &shared.DocumentRequest{RequestID: requestID, TenantID: "acme", RawText: "Invoice #1"}
		require.NoError(t, svc.Ingest(ctx, req))
		assert.Equal(t, requestID, req.RequestID)
	})

	t.Run("Disabled", func(t *testing.T) {
		svc := NewDocumentService(newTestLogger(), new(MockWorkflow), nil, nil)

		err := svc.Ingest(ctx, &shared.DocumentRequest{TenantID: "acme", RawText: "x"})

		assert.ErrorIs(t, err, ErrIngestDisabled)
	})

	t.Run("InvalidRequest", func(t *testing.T) {
		publisher := new(MockPublisher)
		svc := NewDocumentService(newTestLogger(), new(MockWorkflow), nil, publisher)

		err := svc.Ingest(ctx, &shared.DocumentRequest{RawText: "x"})

		assert.ErrorIs(t, err, shared.ErrMissingTenant)
		publisher.AssertNotCalled(t, "PublishDocumentRequest", mock.Anything, mock.Anything)
	})

	t.Run("PublishFailure", func(t *testing.T) {
		publisher := new(MockPublisher)
		svc := NewDocumentService(newTestLogger(), new(MockWorkflow), nil, publisher)
		brokerErr := errors.New("broker down")

		publisher.On("PublishDocumentRequest", ctx, mock.Anything).Return(brokerErr).Once()

		err := svc.Ingest(ctx, &shared.DocumentRequest{TenantID: "acme", RawText: "x"})

		assert.ErrorIs(t, err, brokerErr)
	})
}
