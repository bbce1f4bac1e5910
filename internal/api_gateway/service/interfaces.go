package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/document"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/reconciliation"
)

// DocumentService turns uploaded documents into invoices
type DocumentService interface {
	// ProcessText reconciles OCR text synchronously
	ProcessText(ctx context.Context, input TextInput) (*reconciliation.Result, error)

	// ProcessScan runs OCR on an image, then reconciles the recognized text
	// Returns ErrOCRDisabled when no OCR endpoint is configured
	ProcessScan(ctx context.Context, input ScanInput) (*reconciliation.Result, error)

	// Ingest queues OCR text for the document processor
	// Returns ErrIngestDisabled when no Kafka producer is configured
	Ingest(ctx context.Context, request *shared.DocumentRequest) error
}

// InvoiceService exposes invoices and operator actions on them
type InvoiceService interface {
	// ListInvoices returns one page of invoices and the total number matching the filter
	ListInvoices(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, int64, error)

	// GetInvoice returns ErrInvoiceNotFound if the invoice doesn't exist or belongs to another tenant
	GetInvoice(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error)

	// GetDocument returns the archived OCR document of an invoice
	GetDocument(ctx context.Context, tenantID string, id uuid.UUID) (*document.Document, error)

	// UpdateInvoice applies operator edits to the extracted header and re-matches when needed
	UpdateInvoice(ctx context.Context, tenantID string, id uuid.UUID, update invoice.HeaderUpdate) (*reconciliation.Result, error)

	// ClassifyInvoice previews the classifier decision without storing it
	ClassifyInvoice(ctx context.Context, tenantID string, id uuid.UUID) (*reconciliation.Classification, error)

	Reconcile(ctx context.Context, tenantID string, id uuid.UUID, transactionID string, opts reconciliation.Options) (*invoice.Invoice, error)
	AssignCostCenter(ctx context.Context, tenantID string, id uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, error)
	SubmitCorrection(ctx context.Context, tenantID string, id uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, *costcenter.Correction, error)
	ListCorrections(ctx context.Context, limit, offset int) ([]*costcenter.Correction, int64, error)

	// Dashboard aggregates counts for the tenant; an empty tenant covers all of them
	Dashboard(ctx context.Context, tenantID string) (*Dashboard, error)
}

// CostCenterService manages cost center reference data through the classifier
type CostCenterService interface {
	ListCostCenters(ctx context.Context) ([]costcenter.CostCenter, error)
	CreateCostCenter(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error)
	UpdateCostCenter(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error)
	DeleteCostCenter(ctx context.Context, code string) error
	ClassifierInfo(ctx context.Context) (*classification.Info, error)
}

// Workflow is the part of the reconciliation workflow the gateway drives
type Workflow interface {
	ProcessDocument(ctx context.Context, doc reconciliation.Document, meta reconciliation.Metadata) (*reconciliation.Result, error)
	ReconcileManually(ctx context.Context, tenantID string, invoiceID uuid.UUID, transactionID string, opts reconciliation.Options) (*invoice.Invoice, error)
	SubmitCorrection(ctx context.Context, tenantID string, invoiceID uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, *costcenter.Correction, error)
	AssignCostCenter(ctx context.Context, tenantID string, invoiceID uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, error)
	UpdateHeader(ctx context.Context, tenantID string, invoiceID uuid.UUID, update invoice.HeaderUpdate) (*reconciliation.Result, error)
	PreviewClassification(ctx context.Context, tenantID string, invoiceID uuid.UUID) (*reconciliation.Classification, error)
}

// CostCenterManager is implemented by the classifier, which keeps its snapshot in
// step with every write
type CostCenterManager interface {
	Refresh(ctx context.Context) ([]costcenter.CostCenter, error)
	Create(ctx context.Context, cc *costcenter.CostCenter) error
	Update(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error)
	Delete(ctx context.Context, code string) error
	Info(ctx context.Context) (*classification.Info, error)
}
