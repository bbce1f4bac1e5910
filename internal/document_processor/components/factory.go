package components

import (
	"log/slog"

	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/document_processor/service"
)

// CreateProcessingService wraps the workflow in a bounded worker pool, falling back
// to direct processing when the pool cannot be created.
func CreateProcessingService(
	workflow service.DocumentWorkflow,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	baseService := service.NewProcessingService(workflow, logger)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
