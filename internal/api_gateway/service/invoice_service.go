package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/document"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/reconciliation"
	"golang.org/x/sync/errgroup"
)

// RecentInvoiceCount is how many of the newest invoices the dashboard shows
const RecentInvoiceCount = 5

// Dashboard summarises reconciliation progress
type Dashboard struct {
	Invoices        *invoice.Stats     `json:"invoices"`
	Documents       int64              `json:"documents"`
	Corrections     int64              `json:"corrections"`
	RecentInvoices  []*invoice.Invoice `json:"recent_invoices"`
	LedgerConnected bool               `json:"ledger_connected"`
}

// InvoiceServiceImpl implements the InvoiceService interface
type InvoiceServiceImpl struct {
	workflow        Workflow
	invoices        invoice.Repository
	documents       document.Repository
	corrections     costcenter.CorrectionRepository
	ledgerConnected bool
	logger          *slog.Logger
}

// NewInvoiceService creates an invoice service. documents may be nil when no document
// store is configured.
func NewInvoiceService(
	logger *slog.Logger,
	workflow Workflow,
	invoices invoice.Repository,
	documents document.Repository,
	corrections costcenter.CorrectionRepository,
	ledgerConnected bool,
) InvoiceService {
	return &InvoiceServiceImpl{
		workflow:        workflow,
		invoices:        invoices,
		documents:       documents,
		corrections:     corrections,
		ledgerConnected: ledgerConnected,
		logger:          logger,
	}
}

// ListInvoices returns the requested page together with the unpaginated total
func (s *InvoiceServiceImpl) ListInvoices(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, int64, error) {
	total, err := s.invoices.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*invoice.Invoice{}, 0, nil
	}

	invoices, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// GetInvoice hides invoices of other tenants behind ErrInvoiceNotFound
func (s *InvoiceServiceImpl) GetInvoice(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.OwnedBy(tenantID) {
		return nil, invoice.ErrInvoiceNotFound{ID: id}
	}
	return inv, nil
}

// GetDocument checks the invoice exists first so an unknown id is reported as such
func (s *InvoiceServiceImpl) GetDocument(ctx context.Context, tenantID string, id uuid.UUID) (*document.Document, error) {
	if _, err := s.GetInvoice(ctx, tenantID, id); err != nil {
		return nil, err
	}
	if s.documents == nil {
		return nil, document.ErrDocumentNotFound{InvoiceID: id}
	}
	return s.documents.GetByInvoiceID(ctx, id)
}

func (s *InvoiceServiceImpl) UpdateInvoice(ctx context.Context, tenantID string, id uuid.UUID, update invoice.HeaderUpdate) (*reconciliation.Result, error) {
	return s.workflow.UpdateHeader(ctx, tenantID, id, update)
}

func (s *InvoiceServiceImpl) ClassifyInvoice(ctx context.Context, tenantID string, id uuid.UUID) (*reconciliation.Classification, error) {
	return s.workflow.PreviewClassification(ctx, tenantID, id)
}

func (s *InvoiceServiceImpl) Reconcile(ctx context.Context, tenantID string, id uuid.UUID, transactionID string, opts reconciliation.Options) (*invoice.Invoice, error) {
	return s.workflow.ReconcileManually(ctx, tenantID, id, transactionID, opts)
}

func (s *InvoiceServiceImpl) AssignCostCenter(ctx context.Context, tenantID string, id uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, error) {
	return s.workflow.AssignCostCenter(ctx, tenantID, id, lineItemIndex, code)
}

func (s *InvoiceServiceImpl) SubmitCorrection(ctx context.Context, tenantID string, id uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, *costcenter.Correction, error) {
	return s.workflow.SubmitCorrection(ctx, tenantID, id, lineItemIndex, code)
}

func (s *InvoiceServiceImpl) ListCorrections(ctx context.Context, limit, offset int) ([]*costcenter.Correction, int64, error) {
	total, err := s.corrections.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	corrections, err := s.corrections.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return corrections, total, nil
}

// Dashboard queries the stores concurrently and fails if any of them fails
func (s *InvoiceServiceImpl) Dashboard(ctx context.Context, tenantID string) (*Dashboard, error) {
	dashboard := &Dashboard{LedgerConnected: s.ledgerConnected}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.invoices.Stats(gctx, tenantID)
		if err != nil {
			return err
		}
		dashboard.Invoices = stats
		return nil
	})
	g.Go(func() error {
		recent, err := s.invoices.List(gctx, invoice.ListFilter{
			TenantID: tenantID,
			SortBy:   invoice.SortByCreatedAt,
			SortDesc: true,
			Limit:    RecentInvoiceCount,
		})
		if err != nil {
			return err
		}
		dashboard.RecentInvoices = recent
		return nil
	})
	g.Go(func() error {
		count, err := s.corrections.Count(gctx)
		if err != nil {
			return err
		}
		dashboard.Corrections = count
		return nil
	})
	if s.documents != nil {
		g.Go(func() error {
			count, err := s.documents.CountByTenant(gctx, tenantID)
			if err != nil {
				return err
			}
			dashboard.Documents = count
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to build dashboard", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	if dashboard.RecentInvoices == nil {
		dashboard.RecentInvoices = []*invoice.Invoice{}
	}
	return dashboard, nil
}
