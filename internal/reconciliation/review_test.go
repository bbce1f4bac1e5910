package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/platform/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingInvoice() *invoice.Invoice {
	inv := invoice.NewInvoice("tenant-1", processedAt)
	inv.Vendor = "Acme Ltd"
	inv.InvoiceNumber = "INV-2024-001"
	inv.Amount = decimal.RequireFromString("1200.00")
	inv.Currency = "GBP"
	inv.IssueDate = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return inv
}

func TestUpdateHeader_RematchesCorrectedAmount(t *testing.T) {
	env := newTestEnv(t, true)
	inv := pendingInvoice()
	env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
	env.invoices.On("Update", mock.Anything, inv).Return(nil)
	env.ledger.On("ListTransactions", mock.Anything, "tenant-1").Return([]ledger.Transaction{
		acmeTransaction("tx-1", "1250.00", time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), "Acme Ltd"),
	}, nil)

	amount := decimal.RequireFromString("1250.00")
	result, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", inv.ID, invoice.HeaderUpdate{Amount: &amount})

	require.NoError(t, err)
	got := result.Invoice
	assert.True(t, amount.Equal(got.Amount))
	assert.True(t, got.FieldConfidence.Amount)
	assert.Equal(t, invoice.StatusReconciled, got.Status)
	require.Len(t, got.Matches, 1)
	assert.Equal(t, "tx-1", got.Matches[0].TransactionID)
	require.NotNil(t, result.Match)
	assert.True(t, hasNote(got, "header updated: amount"))
	assert.Equal(t, 1, env.tx.calls)
}

func TestUpdateHeader_VendorChangeReclassifies(t *testing.T) {
	t.Run("automatic assignment follows the vendor", func(t *testing.T) {
		env := newTestEnv(t, false)
		inv := pendingInvoice()
		inv.Vendor = "Unknown"
		inv.AutoAssignCostCenter("IT", "Information Technology", classification.FreeTextConfidence, processedAt)
		env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
		env.invoices.On("Update", mock.Anything, inv).Return(nil)

		vendor := "  Acme Holdings "
		result, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", inv.ID, invoice.HeaderUpdate{Vendor: &vendor})

		require.NoError(t, err)
		got := result.Invoice
		assert.Equal(t, "Acme Holdings", got.Vendor)
		require.NotNil(t, got.CostCenter)
		assert.Equal(t, "OPS", got.CostCenter.Code)
		assert.True(t, hasNote(got, "cost center re-assigned to OPS"))
		assert.True(t, hasNote(got, "matching skipped: ledger not configured"))
	})

	t.Run("manual assignment is kept", func(t *testing.T) {
		env := newTestEnv(t, false)
		inv := pendingInvoice()
		inv.Vendor = "Unknown"
		inv.AssignCostCenterManually("IT", "Information Technology", processedAt)
		env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
		env.invoices.On("Update", mock.Anything, inv).Return(nil)

		vendor := "Acme Holdings"
		result, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", inv.ID, invoice.HeaderUpdate{Vendor: &vendor})

		require.NoError(t, err)
		assert.Equal(t, "IT", result.Invoice.CostCenter.Code)
		assert.True(t, result.Invoice.CostCenter.ManuallySet)
		assert.False(t, hasNote(result.Invoice, "re-assigned"))
	})
}

func TestUpdateHeader_NoRematch(t *testing.T) {
	t.Run("reconciled invoice keeps its match", func(t *testing.T) {
		env := newTestEnv(t, true)
		inv := existingInvoice()
		require.NoError(t, inv.Apply(invoice.EventAutoMatchHigh, processedAt))
		env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
		env.invoices.On("Update", mock.Anything, inv).Return(nil)

		amount := decimal.RequireFromString("999.00")
		result, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", inv.ID, invoice.HeaderUpdate{Amount: &amount})

		require.NoError(t, err)
		assert.Equal(t, invoice.StatusReconciled, result.Invoice.Status)
		assert.Equal(t, "tx-auto", result.Invoice.Matches[0].TransactionID)
		assert.Nil(t, result.Match)
		env.ledger.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything)
	})

	t.Run("unscored field", func(t *testing.T) {
		env := newTestEnv(t, true)
		inv := pendingInvoice()
		env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
		env.invoices.On("Update", mock.Anything, inv).Return(nil)

		number := "INV-2024-777"
		result, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", inv.ID, invoice.HeaderUpdate{InvoiceNumber: &number})

		require.NoError(t, err)
		assert.Equal(t, "INV-2024-777", result.Invoice.InvoiceNumber)
		assert.True(t, result.Invoice.FieldConfidence.InvoiceNumber)
		env.ledger.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything)
	})

	t.Run("ledger unavailable is a note", func(t *testing.T) {
		env := newTestEnv(t, true)
		inv := pendingInvoice()
		env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
		env.invoices.On("Update", mock.Anything, inv).Return(nil)
		env.ledger.On("ListTransactions", mock.Anything, "tenant-1").Return(nil, errors.New("connection refused"))

		issued := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
		result, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", inv.ID, invoice.HeaderUpdate{IssueDate: &issued})

		require.NoError(t, err)
		assert.Equal(t, invoice.StatusPending, result.Invoice.Status)
		assert.True(t, hasNote(result.Invoice, "matching unavailable: connection refused"))
	})
}

func TestUpdateHeader_Errors(t *testing.T) {
	t.Run("empty update", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", existingInvoice().ID, invoice.HeaderUpdate{})

		assert.ErrorIs(t, err, ErrEmptyHeaderUpdate)
		env.invoices.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("other tenant", func(t *testing.T) {
		env := newTestEnv(t, true)
		inv := pendingInvoice()
		env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)

		vendor := "Globex"
		_, err := env.workflow.UpdateHeader(context.Background(), "tenant-2", inv.ID, invoice.HeaderUpdate{Vendor: &vendor})

		assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound{})
		assert.Equal(t, "Acme Ltd", inv.Vendor)
		env.invoices.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("invoice busy", func(t *testing.T) {
		env := newTestEnv(t, true)
		id := existingInvoice().ID
		release, ok := env.workflow.inFlight.TryAcquire(invoiceKey(id))
		require.True(t, ok)
		defer release()

		vendor := "Globex"
		_, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", id, invoice.HeaderUpdate{Vendor: &vendor})
		assert.ErrorIs(t, err, ErrReconciliationInProgress)
	})

	t.Run("save fails", func(t *testing.T) {
		env := newTestEnv(t, false)
		inv := pendingInvoice()
		env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
		env.invoices.On("Update", mock.Anything, inv).Return(invoice.ErrConcurrentModification{ID: inv.ID})

		number := "INV-9"
		_, err := env.workflow.UpdateHeader(context.Background(), "tenant-1", inv.ID, invoice.HeaderUpdate{InvoiceNumber: &number})
		assert.ErrorIs(t, err, invoice.ErrConcurrentModification{})
	})
}

func TestPreviewClassification(t *testing.T) {
	env := newTestEnv(t, false)
	inv := existingInvoice()
	inv.LineItems = append(inv.LineItems, invoice.LineItem{Position: 2, Quantity: 1, Description: "Consulting"})
	inv.AssignCostCenterManually("IT", "Information Technology", processedAt)
	env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)

	got, err := env.workflow.PreviewClassification(context.Background(), "tenant-1", inv.ID)

	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.InvoiceID)
	require.NotNil(t, got.Invoice)
	assert.Equal(t, "OPS", got.Invoice.Code, "the preview ignores the manual assignment")
	assert.Equal(t, classification.SourceVendor, got.Invoice.Source)

	require.Len(t, got.LineItems, 3)
	assert.Equal(t, "IT", got.LineItems[0].Decision.Code)
	assert.False(t, got.LineItems[0].Inherited)
	assert.Equal(t, "Widget B", got.LineItems[1].Description)
	assert.Equal(t, "OPS", got.LineItems[2].Decision.Code)
	assert.True(t, got.LineItems[2].Inherited)

	assert.Equal(t, "IT", inv.CostCenter.Code, "nothing is written back")
	env.invoices.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assert.Equal(t, 0, env.tx.calls)
}

func TestPreviewClassification_OtherTenant(t *testing.T) {
	env := newTestEnv(t, false)
	inv := existingInvoice()
	env.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)

	_, err := env.workflow.PreviewClassification(context.Background(), "tenant-2", inv.ID)
	assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound{})
}
