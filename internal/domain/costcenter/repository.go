package costcenter

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository manages cost center reference data
type Repository interface {
	Create(ctx context.Context, cc *CostCenter) error
	GetByCode(ctx context.Context, code string) (*CostCenter, error)

	// List returns cost centers in their stored order, which is the classifier tie-break
	List(ctx context.Context) ([]*CostCenter, error)
	Update(ctx context.Context, cc *CostCenter) error
	Delete(ctx context.Context, code string) error
	WithTx(tx pgx.Tx) Repository
}

// CorrectionRepository persists classifier corrections
type CorrectionRepository interface {
	Create(ctx context.Context, c *Correction) error
	List(ctx context.Context, limit, offset int) ([]*Correction, error)
	Count(ctx context.Context) (int64, error)
	WithTx(tx pgx.Tx) CorrectionRepository
}

// ErrCostCenterNotFound indicates a missing cost center
type ErrCostCenterNotFound struct {
	Code string
}

func (e ErrCostCenterNotFound) Error() string {
	return "cost center not found: " + e.Code
}

// Is implements the errors.Is interface for ErrCostCenterNotFound
func (e ErrCostCenterNotFound) Is(target error) bool {
	t, ok := target.(ErrCostCenterNotFound)
	if !ok {
		return false
	}
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code
}

// ErrDuplicateCostCenter indicates code uniqueness violation
type ErrDuplicateCostCenter struct {
	Code string
}

func (e ErrDuplicateCostCenter) Error() string {
	return "cost center already exists: " + e.Code
}

// Is implements the errors.Is interface for ErrDuplicateCostCenter
func (e ErrDuplicateCostCenter) Is(target error) bool {
	t, ok := target.(ErrDuplicateCostCenter)
	if !ok {
		return false
	}
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code
}
