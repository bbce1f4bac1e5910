package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SortField is a whitelisted column invoices may be ordered by
type SortField string

const (
	SortByCreatedAt     SortField = "created_at"
	SortByIssueDate     SortField = "issue_date"
	SortByAmount        SortField = "amount"
	SortByVendor        SortField = "vendor"
	SortByInvoiceNumber SortField = "invoice_number"
)

// ListFilter narrows invoice listings. Zero values mean "no filter".
type ListFilter struct {
	TenantID      string
	InvoiceNumber string
	Vendor        string
	Status        Status
	MinAmount     *decimal.Decimal
	MaxAmount     *decimal.Decimal
	DateFrom      *time.Time
	DateTo        *time.Time
	Reconciled    *bool
	CostCenter    string
	SortBy        SortField
	SortDesc      bool
	Limit         int
	Offset        int
}

// Stats aggregates invoice counts for the dashboard
type Stats struct {
	Total       int64           `json:"total"`
	Pending     int64           `json:"pending"`
	Review      int64           `json:"review"`
	Reconciled  int64           `json:"reconciled"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Repository defines invoice persistence operations
type Repository interface {
	// Create stores the invoice together with its line items
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// Update uses optimistic locking and replaces the stored line items
	Update(ctx context.Context, inv *Invoice) error

	List(ctx context.Context, filter ListFilter) ([]*Invoice, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Stats(ctx context.Context, tenantID string) (*Stats, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrInvoiceNotFound indicates a missing invoice
type ErrInvoiceNotFound struct {
	ID uuid.UUID
}

func (e ErrInvoiceNotFound) Error() string {
	return "invoice not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrInvoiceNotFound
func (e ErrInvoiceNotFound) Is(target error) bool {
	t, ok := target.(ErrInvoiceNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	ID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for invoice: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrConcurrentModification
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
