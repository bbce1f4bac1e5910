// Package postgres provides PostgreSQL implementations of the domain repositories.
// Invoices, their line items, cost centers, corrections and the ledger outbox live here.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `id, tenant_id, invoice_number, vendor, currency, amount, issue_date, due_date,
		cost_center, processing_notes, file_name, document_hash, raw_text, ocr_confidence,
		field_confidence, status, matches, match_confidence, reconciled_at, reconciled_by,
		version, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sortColumns whitelists the columns a listing may be ordered by
var sortColumns = map[invoice.SortField]string{
	invoice.SortByCreatedAt:     "created_at",
	invoice.SortByIssueDate:     "issue_date",
	invoice.SortByAmount:        "amount",
	invoice.SortByVendor:        "vendor",
	invoice.SortByInvoiceNumber: "invoice_number",
}

// InvoiceRepository implements the invoice.Repository interface for PostgreSQL
type InvoiceRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository
func NewInvoiceRepository(logger *slog.Logger, db *persistence.PostgresDB) invoice.Repository {
	return &InvoiceRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx binds the repository to tx. Create and Update write several statements and
// are only atomic when called through a transaction-bound repository.
func (r *InvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return &InvoiceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new invoice together with its line items
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	args, err := invoiceArgs(inv)
	if err != nil {
		return fmt.Errorf("failed to encode invoice %s: %w", inv.ID, err)
	}

	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	if _, err := r.querier.Exec(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create invoice", "invoice_id", inv.ID.String(), "error", err)
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return r.insertLineItems(ctx, inv)
}

// GetByID returns the invoice with its line items in position order
func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = $1
	`

	inv, err := scanInvoice(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrInvoiceNotFound{ID: id}
		}
		r.logger.Error("Failed to get invoice", "invoice_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	items, err := r.lineItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	inv.LineItems = items[id]
	if inv.LineItems == nil {
		inv.LineItems = []invoice.LineItem{}
	}

	return inv, nil
}

// Update writes the invoice guarded by its version and replaces its line items.
// On success the in-memory version is advanced to match the stored row.
func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	args, err := invoiceArgs(inv)
	if err != nil {
		return fmt.Errorf("failed to encode invoice %s: %w", inv.ID, err)
	}

	query := `
		UPDATE invoices
		SET tenant_id = $2, invoice_number = $3, vendor = $4, currency = $5, amount = $6,
			issue_date = $7, due_date = $8, cost_center = $9, processing_notes = $10,
			file_name = $11, document_hash = $12, raw_text = $13, ocr_confidence = $14,
			field_confidence = $15, status = $16, matches = $17, match_confidence = $18,
			reconciled_at = $19, reconciled_by = $20, version = $21 + 1, created_at = $22, updated_at = $23
		WHERE id = $1 AND version = $21
	`
	result, err := r.querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update invoice", "invoice_id", inv.ID.String(), "error", err)
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invoice.ErrConcurrentModification{ID: inv.ID}
	}
	inv.Version++

	if _, err := r.querier.Exec(ctx, `DELETE FROM invoice_line_items WHERE invoice_id = $1`, inv.ID); err != nil {
		r.logger.Error("Failed to clear line items", "invoice_id", inv.ID.String(), "error", err)
		return fmt.Errorf("failed to clear line items: %w", err)
	}
	return r.insertLineItems(ctx, inv)
}

// List returns one page of invoices matching filter, line items included
func (r *InvoiceRepository) List(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	builder := applyFilter(psql.Select(invoiceColumns).From("invoices"), filter)

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = sortColumns[invoice.SortByCreatedAt]
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	builder = builder.OrderBy(column+" "+direction, "id ASC")

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build invoice query: %w", err)
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list invoices", "error", err)
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*invoice.Invoice{}
	ids := []uuid.UUID{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			r.logger.Error("Failed to scan invoice", "error", err)
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over invoices", "error", err)
		return nil, fmt.Errorf("error iterating over invoices: %w", err)
	}
	if len(invoices) == 0 {
		return invoices, nil
	}

	items, err := r.lineItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		inv.LineItems = items[inv.ID]
		if inv.LineItems == nil {
			inv.LineItems = []invoice.LineItem{}
		}
	}

	return invoices, nil
}

// Count returns how many invoices match filter, ignoring paging and sorting
func (r *InvoiceRepository) Count(ctx context.Context, filter invoice.ListFilter) (int64, error) {
	query, args, err := applyFilter(psql.Select("COUNT(*)").From("invoices"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build invoice count query: %w", err)
	}

	var count int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count invoices", "error", err)
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

// Stats aggregates invoice counts per status. An empty tenantID covers all tenants.
func (r *InvoiceRepository) Stats(ctx context.Context, tenantID string) (*invoice.Stats, error) {
	builder := psql.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE status = 'pending')",
		"COUNT(*) FILTER (WHERE status = 'review')",
		"COUNT(*) FILTER (WHERE status = 'reconciled')",
		"COALESCE(SUM(amount), 0)",
	).From("invoices")
	if tenantID != "" {
		builder = builder.Where(sq.Eq{"tenant_id": tenantID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build invoice stats query: %w", err)
	}

	var stats invoice.Stats
	err = r.querier.QueryRow(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Review,
		&stats.Reconciled,
		&stats.TotalAmount,
	)
	if err != nil {
		r.logger.Error("Failed to aggregate invoice stats", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to aggregate invoice stats: %w", err)
	}
	return &stats, nil
}

func (r *InvoiceRepository) insertLineItems(ctx context.Context, inv *invoice.Invoice) error {
	if len(inv.LineItems) == 0 {
		return nil
	}

	builder := psql.Insert("invoice_line_items").
		Columns("invoice_id", "position", "quantity", "unit_price", "amount", "description", "cost_center")
	for i, item := range inv.LineItems {
		costCenter, err := encodeNullableJSON(item.CostCenter)
		if err != nil {
			return fmt.Errorf("failed to encode line item %d: %w", i, err)
		}
		builder = builder.Values(inv.ID, i, item.Quantity, item.UnitPrice, item.Amount, item.Description, costCenter)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build line item insert: %w", err)
	}
	if _, err := r.querier.Exec(ctx, query, args...); err != nil {
		r.logger.Error("Failed to insert line items", "invoice_id", inv.ID.String(), "count", len(inv.LineItems), "error", err)
		return fmt.Errorf("failed to insert line items: %w", err)
	}
	return nil
}

// lineItems loads the line items of the given invoices keyed by invoice id
func (r *InvoiceRepository) lineItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]invoice.LineItem, error) {
	query := `
		SELECT invoice_id, position, quantity, unit_price, amount, description, cost_center
		FROM invoice_line_items
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, position
	`

	rows, err := r.querier.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error("Failed to load line items", "error", err)
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]invoice.LineItem, len(ids))
	for rows.Next() {
		var (
			invoiceID  uuid.UUID
			item       invoice.LineItem
			costCenter []byte
		)
		err := rows.Scan(&invoiceID, &item.Position, &item.Quantity, &item.UnitPrice, &item.Amount, &item.Description, &costCenter)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if len(costCenter) > 0 {
			item.CostCenter = &invoice.CostCenterAssignment{}
			if err := json.Unmarshal(costCenter, item.CostCenter); err != nil {
				return nil, fmt.Errorf("failed to decode line item cost center: %w", err)
			}
		}
		items[invoiceID] = append(items[invoiceID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over line items: %w", err)
	}
	return items, nil
}

// applyFilter adds the WHERE clauses shared by List and Count
func applyFilter(builder sq.SelectBuilder, filter invoice.ListFilter) sq.SelectBuilder {
	if filter.TenantID != "" {
		builder = builder.Where(sq.Eq{"tenant_id": filter.TenantID})
	}
	if filter.InvoiceNumber != "" {
		builder = builder.Where(sq.ILike{"invoice_number": "%" + filter.InvoiceNumber + "%"})
	}
	if filter.Vendor != "" {
		builder = builder.Where(sq.ILike{"vendor": "%" + filter.Vendor + "%"})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.MinAmount != nil {
		builder = builder.Where(sq.GtOrEq{"amount": *filter.MinAmount})
	}
	if filter.MaxAmount != nil {
		builder = builder.Where(sq.LtOrEq{"amount": *filter.MaxAmount})
	}
	if filter.DateFrom != nil {
		builder = builder.Where(sq.GtOrEq{"issue_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		builder = builder.Where(sq.LtOrEq{"issue_date": *filter.DateTo})
	}
	if filter.Reconciled != nil {
		if *filter.Reconciled {
			builder = builder.Where(sq.Eq{"status": invoice.StatusReconciled})
		} else {
			builder = builder.Where(sq.NotEq{"status": invoice.StatusReconciled})
		}
	}
	if filter.CostCenter != "" {
		builder = builder.Where(sq.Expr("cost_center ->> 'code' = ?", filter.CostCenter))
	}
	return builder
}

// invoiceArgs returns the values of invoiceColumns in order
func invoiceArgs(inv *invoice.Invoice) ([]interface{}, error) {
	costCenter, err := encodeNullableJSON(inv.CostCenter)
	if err != nil {
		return nil, err
	}
	notes, err := json.Marshal(nonNil(inv.ProcessingNotes))
	if err != nil {
		return nil, err
	}
	fieldConfidence, err := json.Marshal(inv.FieldConfidence)
	if err != nil {
		return nil, err
	}
	matches, err := json.Marshal(nonNil(inv.Matches))
	if err != nil {
		return nil, err
	}

	return []interface{}{
		inv.ID,
		inv.TenantID,
		inv.InvoiceNumber,
		inv.Vendor,
		inv.Currency,
		inv.Amount,
		inv.IssueDate,
		inv.DueDate,
		costCenter,
		notes,
		inv.FileName,
		inv.DocumentHash,
		inv.RawText,
		inv.OCRConfidence,
		fieldConfidence,
		string(inv.Status),
		matches,
		inv.MatchConfidence,
		inv.ReconciledAt,
		inv.ReconciledBy,
		inv.Version,
		inv.CreatedAt,
		inv.UpdatedAt,
	}, nil
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var (
		inv                   invoice.Invoice
		status                string
		amount                decimal.Decimal
		dueDate, reconciledAt *time.Time
	)
	var costCenter, notes, fieldConfidence, matches []byte
	err := row.Scan(
		&inv.ID,
		&inv.TenantID,
		&inv.InvoiceNumber,
		&inv.Vendor,
		&inv.Currency,
		&amount,
		&inv.IssueDate,
		&dueDate,
		&costCenter,
		&notes,
		&inv.FileName,
		&inv.DocumentHash,
		&inv.RawText,
		&inv.OCRConfidence,
		&fieldConfidence,
		&status,
		&matches,
		&inv.MatchConfidence,
		&reconciledAt,
		&inv.ReconciledBy,
		&inv.Version,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := invoice.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	inv.Status = parsed
	inv.Amount = amount
	inv.DueDate = dueDate
	inv.ReconciledAt = reconciledAt

	if len(costCenter) > 0 {
		inv.CostCenter = &invoice.CostCenterAssignment{}
		if err := json.Unmarshal(costCenter, inv.CostCenter); err != nil {
			return nil, fmt.Errorf("failed to decode cost center: %w", err)
		}
	}
	inv.ProcessingNotes = []string{}
	if err := decodeJSON(notes, &inv.ProcessingNotes); err != nil {
		return nil, fmt.Errorf("failed to decode processing notes: %w", err)
	}
	if err := decodeJSON(fieldConfidence, &inv.FieldConfidence); err != nil {
		return nil, fmt.Errorf("failed to decode field confidence: %w", err)
	}
	inv.Matches = []invoice.Match{}
	if err := decodeJSON(matches, &inv.Matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}

	return &inv, nil
}

// encodeNullableJSON maps a nil pointer to SQL NULL
func encodeNullableJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
