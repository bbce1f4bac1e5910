package document

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores raw OCR documents
type Repository interface {
	// Save inserts or replaces the document stored for the invoice
	Save(ctx context.Context, doc *Document) error
	GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*Document, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*Document, error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}

// ErrDocumentNotFound indicates no raw document is stored for an invoice
type ErrDocumentNotFound struct {
	InvoiceID uuid.UUID
}

func (e ErrDocumentNotFound) Error() string {
	return "document not found for invoice: " + e.InvoiceID.String()
}

// Is implements the errors.Is interface for ErrDocumentNotFound
func (e ErrDocumentNotFound) Is(target error) bool {
	t, ok := target.(ErrDocumentNotFound)
	if !ok {
		return false
	}
	if t.InvoiceID == uuid.Nil {
		return true
	}
	return e.InvoiceID == t.InvoiceID
}
