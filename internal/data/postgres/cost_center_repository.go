package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// CostCenterRepository implements the costcenter.Repository interface for PostgreSQL
type CostCenterRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCostCenterRepository creates a new PostgreSQL cost center repository
func NewCostCenterRepository(logger *slog.Logger, db *persistence.PostgresDB) costcenter.Repository {
	return &CostCenterRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

func (r *CostCenterRepository) WithTx(tx pgx.Tx) costcenter.Repository {
	return &CostCenterRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create returns ErrDuplicateCostCenter when the code is taken
func (r *CostCenterRepository) Create(ctx context.Context, cc *costcenter.CostCenter) error {
	query := `
		INSERT INTO cost_centers (code, name, keywords, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query, cc.Code, cc.Name, cc.Keywords, cc.CreatedAt, cc.UpdatedAt)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return costcenter.ErrDuplicateCostCenter{Code: cc.Code}
		}
		r.logger.Error("Failed to create cost center", "code", cc.Code, "error", err)
		return fmt.Errorf("failed to create cost center: %w", err)
	}

	return nil
}

func (r *CostCenterRepository) GetByCode(ctx context.Context, code string) (*costcenter.CostCenter, error) {
	query := `
		SELECT code, name, keywords, created_at, updated_at
		FROM cost_centers
		WHERE code = $1
	`

	var cc costcenter.CostCenter
	err := r.querier.QueryRow(ctx, query, code).Scan(&cc.Code, &cc.Name, &cc.Keywords, &cc.CreatedAt, &cc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, costcenter.ErrCostCenterNotFound{Code: code}
		}
		r.logger.Error("Failed to get cost center", "code", code, "error", err)
		return nil, fmt.Errorf("failed to get cost center: %w", err)
	}

	return &cc, nil
}

// List returns cost centers in insertion order
func (r *CostCenterRepository) List(ctx context.Context) ([]*costcenter.CostCenter, error) {
	query := `
		SELECT code, name, keywords, created_at, updated_at
		FROM cost_centers
		ORDER BY id ASC
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list cost centers", "error", err)
		return nil, fmt.Errorf("failed to list cost centers: %w", err)
	}
	defer rows.Close()

	centers := []*costcenter.CostCenter{}
	for rows.Next() {
		var cc costcenter.CostCenter
		if err := rows.Scan(&cc.Code, &cc.Name, &cc.Keywords, &cc.CreatedAt, &cc.UpdatedAt); err != nil {
			r.logger.Error("Failed to scan cost center", "error", err)
			return nil, fmt.Errorf("failed to scan cost center: %w", err)
		}
		if cc.Keywords == nil {
			cc.Keywords = []string{}
		}
		centers = append(centers, &cc)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over cost centers", "error", err)
		return nil, fmt.Errorf("error iterating over cost centers: %w", err)
	}

	return centers, nil
}

func (r *CostCenterRepository) Update(ctx context.Context, cc *costcenter.CostCenter) error {
	query := `
		UPDATE cost_centers
		SET name = $1, keywords = $2, updated_at = $3
		WHERE code = $4
	`

	result, err := r.querier.Exec(ctx, query, cc.Name, cc.Keywords, cc.UpdatedAt, cc.Code)
	if err != nil {
		r.logger.Error("Failed to update cost center", "code", cc.Code, "error", err)
		return fmt.Errorf("failed to update cost center: %w", err)
	}
	if result.RowsAffected() == 0 {
		return costcenter.ErrCostCenterNotFound{Code: cc.Code}
	}

	return nil
}

// Delete leaves invoices that reference the code untouched; assignments are snapshots
func (r *CostCenterRepository) Delete(ctx context.Context, code string) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM cost_centers WHERE code = $1`, code)
	if err != nil {
		r.logger.Error("Failed to delete cost center", "code", code, "error", err)
		return fmt.Errorf("failed to delete cost center: %w", err)
	}
	if result.RowsAffected() == 0 {
		return costcenter.ErrCostCenterNotFound{Code: code}
	}

	return nil
}
