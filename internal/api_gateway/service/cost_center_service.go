package service

import (
	"context"
	"log/slog"

	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/domain/costcenter"
)

// CostCenterServiceImpl implements the CostCenterService interface
type CostCenterServiceImpl struct {
	manager CostCenterManager
	logger  *slog.Logger
}

func NewCostCenterService(logger *slog.Logger, manager CostCenterManager) CostCenterService {
	return &CostCenterServiceImpl{
		manager: manager,
		logger:  logger,
	}
}

// ListCostCenters reloads from the database so edits made by the document processor's
// learning are visible
func (s *CostCenterServiceImpl) ListCostCenters(ctx context.Context) ([]costcenter.CostCenter, error) {
	return s.manager.Refresh(ctx)
}

func (s *CostCenterServiceImpl) CreateCostCenter(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error) {
	cc, err := costcenter.NewCostCenter(code, name, keywords)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Create(ctx, cc); err != nil {
		return nil, err
	}

	s.logger.Info("Cost center created", "code", cc.Code, "keywords", len(cc.Keywords))
	return cc, nil
}

// UpdateCostCenter keeps the current name when name is empty and the current keywords when keywords is nil
func (s *CostCenterServiceImpl) UpdateCostCenter(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error) {
	cc, err := s.manager.Update(ctx, code, name, keywords)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cost center updated", "code", cc.Code, "keywords", len(cc.Keywords))
	return cc, nil
}

func (s *CostCenterServiceImpl) DeleteCostCenter(ctx context.Context, code string) error {
	if err := s.manager.Delete(ctx, code); err != nil {
		return err
	}
	s.logger.Info("Cost center deleted", "code", code)
	return nil
}

func (s *CostCenterServiceImpl) ClassifierInfo(ctx context.Context) (*classification.Info, error) {
	return s.manager.Info(ctx)
}
