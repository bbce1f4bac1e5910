package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/api_gateway/middleware"
	"github.com/invoice-reconciler/internal/api_gateway/service"
	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/document"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/reconciliation"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Tenant(""))
	return r
}

// decodeData unmarshals the data field of the response envelope into out
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) Response {
	t.Helper()
	var envelope struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	if out != nil {
		require.NotEmpty(t, envelope.Data, "'data' field should not be empty")
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) ProcessText(ctx context.Context, input service.TextInput) (*reconciliation.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}

func (m *MockDocumentService) ProcessScan(ctx context.Context, input service.ScanInput) (*reconciliation.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}

func (m *MockDocumentService) Ingest(ctx context.Context, request *shared.DocumentRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) ListInvoices(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*invoice.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceService) GetInvoice(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetDocument(ctx context.Context, tenantID string, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockInvoiceService) UpdateInvoice(ctx context.Context, tenantID string, id uuid.UUID, update invoice.HeaderUpdate) (*reconciliation.Result, error) {
	args := m.Called(ctx, tenantID, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}

func (m *MockInvoiceService) ClassifyInvoice(ctx context.Context, tenantID string, id uuid.UUID) (*reconciliation.Classification, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Classification), args.Error(1)
}

func (m *MockInvoiceService) Reconcile(ctx context.Context, tenantID string, id uuid.UUID, transactionID string, opts reconciliation.Options) (*invoice.Invoice, error) {
	args := m.Called(ctx, tenantID, id, transactionID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceService) AssignCostCenter(ctx context.Context, tenantID string, id uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, error) {
	args := m.Called(ctx, tenantID, id, lineItemIndex, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockInvoiceService) SubmitCorrection(ctx context.Context, tenantID string, id uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, *costcenter.Correction, error) {
	args := m.Called(ctx, tenantID, id, lineItemIndex, code)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*invoice.Invoice), args.Get(1).(*costcenter.Correction), args.Error(2)
}

func (m *MockInvoiceService) ListCorrections(ctx context.Context, limit, offset int) ([]*costcenter.Correction, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*costcenter.Correction), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceService) Dashboard(ctx context.Context, tenantID string) (*service.Dashboard, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Dashboard), args.Error(1)
}

type MockCostCenterService struct {
	mock.Mock
}

func (m *MockCostCenterService) ListCostCenters(ctx context.Context) ([]costcenter.CostCenter, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]costcenter.CostCenter), args.Error(1)
}

func (m *MockCostCenterService) CreateCostCenter(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error) {
	args := m.Called(ctx, code, name, keywords)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*costcenter.CostCenter), args.Error(1)
}

func (m *MockCostCenterService) UpdateCostCenter(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error) {
	args := m.Called(ctx, code, name, keywords)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*costcenter.CostCenter), args.Error(1)
}

func (m *MockCostCenterService) DeleteCostCenter(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockCostCenterService) ClassifierInfo(ctx context.Context) (*classification.Info, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classification.Info), args.Error(1)
}
