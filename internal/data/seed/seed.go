// Package seed loads the initial cost center catalogue from YAML
package seed

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/invoice-reconciler/internal/domain/costcenter"
)

// File is the layout of the seed document
type File struct {
	CostCenters []Entry `yaml:"cost_centers"`
}

// Entry is one cost center definition
type Entry struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Load reads and validates the cost centers defined in path
func Load(path string) ([]*costcenter.CostCenter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a seed document. Duplicate codes are rejected.
func Parse(data []byte) ([]*costcenter.CostCenter, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "seed: parse cost centers")
	}

	seen := make(map[string]struct{}, len(file.CostCenters))
	centers := make([]*costcenter.CostCenter, 0, len(file.CostCenters))
	for i, e := range file.CostCenters {
		cc, err := costcenter.NewCostCenter(e.Code, e.Name, e.Keywords)
		if err != nil {
			return nil, eris.Wrapf(err, "seed: entry %d", i)
		}
		if _, dup := seen[cc.Code]; dup {
			return nil, eris.Wrapf(costcenter.ErrDuplicateCostCenter{Code: cc.Code}, "seed: entry %d", i)
		}
		seen[cc.Code] = struct{}{}
		centers = append(centers, cc)
	}
	return centers, nil
}

// Apply inserts the seeded cost centers that do not exist yet. Existing rows
// are left alone so operator edits and learned keywords survive restarts.
func Apply(ctx context.Context, logger *slog.Logger, repo costcenter.Repository, centers []*costcenter.CostCenter) (int, error) {
	created := 0
	for _, cc := range centers {
		err := repo.Create(ctx, cc)
		if errors.Is(err, costcenter.ErrDuplicateCostCenter{}) {
			continue
		}
		if err != nil {
			return created, eris.Wrapf(err, "seed: create cost center %s", cc.Code)
		}
		created++
	}

	logger.Info("Seeded cost centers", "created", created, "defined", len(centers))
	return created, nil
}

// LoadAndApply is Load followed by Apply. A missing file is not an error.
func LoadAndApply(ctx context.Context, logger *slog.Logger, repo costcenter.Repository, path string) error {
	if path == "" {
		return nil
	}
	centers, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Cost center seed file not found, skipping", "path", path)
			return nil
		}
		return err
	}
	_, err = Apply(ctx, logger, repo, centers)
	return err
}
