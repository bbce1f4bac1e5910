package service

import (
	"context"

	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/reconciliation"
)

// ProcessingService defines the interface for processing queued documents.
type ProcessingService interface {
	ProcessDocument(ctx context.Context, request *shared.DocumentRequest) error
}

// DocumentWorkflow turns one document into a reconciled invoice
type DocumentWorkflow interface {
	ProcessDocument(ctx context.Context, doc reconciliation.Document, meta reconciliation.Metadata) (*reconciliation.Result, error)
}
