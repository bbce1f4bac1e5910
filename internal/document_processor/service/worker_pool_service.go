package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/invoice-reconciler/internal/domain/shared"
)

// WorkerPoolProcessingService bounds how many documents are reconciled at once
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ProcessDocument runs the request on a pooled worker and waits for its outcome.
// A panic in the worker is returned as an error instead of crashing the consumer.
func (s *WorkerPoolProcessingService) ProcessDocument(ctx context.Context, request *shared.DocumentRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Debug("Submitting document to worker pool", "request_id", request.RequestID.String())

	resultChan := make(chan error, 1)
	requestCopy := *request

	err := s.pool.Submit(func() {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Worker panicked while processing document", "request_id", requestCopy.RequestID.String(), "panic", p)
				resultChan <- fmt.Errorf("worker panic: %v", p)
			}
		}()
		resultChan <- s.baseService.ProcessDocument(ctx, &requestCopy)
	})
	if err != nil {
		logger.Error("Failed to submit document to worker pool",
			"request_id", request.RequestID.String(),
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
