package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/document"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/ocr"
	"github.com/invoice-reconciler/internal/reconciliation"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockWorkflow struct {
	mock.Mock
}

func (m *MockWorkflow) ProcessDocument(ctx context.Context, doc reconciliation.Document, meta reconciliation.Metadata) (*reconciliation.Result, error) {
	args := m.Called(ctx, doc, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}

func (m *MockWorkflow) ReconcileManually(ctx context.Context, tenantID string, invoiceID uuid.UUID, transactionID string, opts reconciliation.Options) (*invoice.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceID, transactionID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockWorkflow) SubmitCorrection(ctx context.Context, tenantID string, invoiceID uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, *costcenter.Correction, error) {
	args := m.Called(ctx, tenantID, invoiceID, lineItemIndex, code)
	var inv *invoice.Invoice
	if v := args.Get(0); v != nil {
		inv = v.(*invoice.Invoice)
	}
	var c *costcenter.Correction
	if v := args.Get(1); v != nil {
		c = v.(*costcenter.Correction)
	}
	return inv, c, args.Error(2)
}

func (m *MockWorkflow) AssignCostCenter(ctx context.Context, tenantID string, invoiceID uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceID, lineItemIndex, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockWorkflow) UpdateHeader(ctx context.Context, tenantID string, invoiceID uuid.UUID, update invoice.HeaderUpdate) (*reconciliation.Result, error) {
	args := m.Called(ctx, tenantID, invoiceID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}

func (m *MockWorkflow) PreviewClassification(ctx context.Context, tenantID string, invoiceID uuid.UUID) (*reconciliation.Classification, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Classification), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractText(ctx context.Context, image []byte) (*ocr.Result, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ocr.Result), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishDocumentRequest(ctx context.Context, req *shared.DocumentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) List(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Count(ctx context.Context, filter invoice.ListFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) Stats(ctx context.Context, tenantID string) (*invoice.Stats, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Stats), args.Error(1)
}

func (m *MockInvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return m
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*document.Document, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

type MockCorrectionRepository struct {
	mock.Mock
}

func (m *MockCorrectionRepository) Create(ctx context.Context, c *costcenter.Correction) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCorrectionRepository) List(ctx context.Context, limit, offset int) ([]*costcenter.Correction, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*costcenter.Correction), args.Error(1)
}

func (m *MockCorrectionRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCorrectionRepository) WithTx(tx pgx.Tx) costcenter.CorrectionRepository {
	return m
}

type MockCostCenterManager struct {
	mock.Mock
}

func (m *MockCostCenterManager) Refresh(ctx context.Context) ([]costcenter.CostCenter, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]costcenter.CostCenter), args.Error(1)
}

func (m *MockCostCenterManager) Create(ctx context.Context, cc *costcenter.CostCenter) error {
	args := m.Called(ctx, cc)
	return args.Error(0)
}

func (m *MockCostCenterManager) Update(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error) {
	args := m.Called(ctx, code, name, keywords)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*costcenter.CostCenter), args.Error(1)
}

func (m *MockCostCenterManager) Delete(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockCostCenterManager) Info(ctx context.Context) (*classification.Info, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classification.Info), args.Error(1)
}
