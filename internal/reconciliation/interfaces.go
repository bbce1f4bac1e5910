package reconciliation

import (
	"context"
	"time"

	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/extraction"
	"github.com/invoice-reconciler/internal/matching"
	"github.com/invoice-reconciler/internal/platform/ledger"
	"github.com/jackc/pgx/v5"
)

// TxRunner runs fn inside one database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// FieldExtractor reads invoice header fields from raw text
type FieldExtractor interface {
	Extract(rawText string, processedAt time.Time) extraction.Fields
}

// CostCenterClassifier assigns cost centers and learns from corrections
type CostCenterClassifier interface {
	Refresh(ctx context.Context) ([]costcenter.CostCenter, error)
	Decide(vendor, freeText string, centers []costcenter.CostCenter) (classification.Decision, bool)
	Learn(ctx context.Context, correction *costcenter.Correction) error
}

// TransactionMatcher scores ledger candidates against an invoice
type TransactionMatcher interface {
	Match(inv *invoice.Invoice, candidates []matching.Candidate) matching.Result
}

// LedgerReader lists the transactions an invoice may be settled by
type LedgerReader interface {
	ListTransactions(ctx context.Context, tenantID string) ([]ledger.Transaction, error)
}
