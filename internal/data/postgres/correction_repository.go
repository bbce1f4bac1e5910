package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// CorrectionRepository implements the costcenter.CorrectionRepository interface for PostgreSQL
type CorrectionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewCorrectionRepository(logger *slog.Logger, db *persistence.PostgresDB) costcenter.CorrectionRepository {
	return &CorrectionRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

func (r *CorrectionRepository) WithTx(tx pgx.Tx) costcenter.CorrectionRepository {
	return &CorrectionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *CorrectionRepository) Create(ctx context.Context, c *costcenter.Correction) error {
	query := `
		INSERT INTO classifier_corrections
			(invoice_id, line_item_index, description, vendor, amount, corrected_cost_center, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		c.InvoiceID,
		c.LineItemIndex,
		c.Description,
		c.Vendor,
		c.Amount,
		c.CorrectedCostCenter,
		c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		r.logger.Error("Failed to create correction",
			"invoice_id", c.InvoiceID.String(),
			"cost_center", c.CorrectedCostCenter,
			"error", err,
		)
		return fmt.Errorf("failed to create correction: %w", err)
	}

	return nil
}

// List returns corrections newest first
func (r *CorrectionRepository) List(ctx context.Context, limit, offset int) ([]*costcenter.Correction, error) {
	query := `
		SELECT id, invoice_id, line_item_index, description, vendor, amount, corrected_cost_center, created_at
		FROM classifier_corrections
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list corrections", "error", err)
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	defer rows.Close()

	corrections := []*costcenter.Correction{}
	for rows.Next() {
		var c costcenter.Correction
		err := rows.Scan(&c.ID, &c.InvoiceID, &c.LineItemIndex, &c.Description, &c.Vendor, &c.Amount, &c.CorrectedCostCenter, &c.CreatedAt)
		if err != nil {
			r.logger.Error("Failed to scan correction", "error", err)
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		corrections = append(corrections, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over corrections: %w", err)
	}

	return corrections, nil
}

func (r *CorrectionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM classifier_corrections`).Scan(&count); err != nil {
		r.logger.Error("Failed to count corrections", "error", err)
		return 0, fmt.Errorf("failed to count corrections: %w", err)
	}
	return count, nil
}
