package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/invoice-reconciler/internal/api_gateway"
	"github.com/invoice-reconciler/internal/api_gateway/handler"
	"github.com/invoice-reconciler/internal/api_gateway/service"
	"github.com/invoice-reconciler/internal/app"
	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/logger"
	"github.com/invoice-reconciler/internal/platform/messaging/producers"
	"github.com/invoice-reconciler/internal/platform/ocr"
	"github.com/invoice-reconciler/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	// Postgres runs the migrations on connect
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	core := app.NewCore(appCtx, log, cfg, postgresDB, mongoDB)

	// Optional collaborators stay nil interfaces when disabled so the services can detect them
	var extractor ocr.Extractor
	if cfg.OCR.Enabled() {
		extractor = ocr.NewAzureExtractor(log.With("component", "ocr"), cfg.OCR)
	} else {
		log.Warn("OCR endpoint not configured, scan endpoint disabled")
	}

	var publisher producers.DocumentRequestPublisher
	documentProducer, err := producers.NewDocumentRequestProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Warn("Kafka producer unavailable, asynchronous ingestion disabled", "error", err)
	} else {
		publisher = documentProducer
	}

	server := api_gateway.NewServer(log, cfg, api_gateway.Services{
		Documents: service.NewDocumentService(log, core.Workflow, extractor, publisher),
		Invoices: service.NewInvoiceService(log,
			core.Workflow,
			core.Invoices,
			core.Documents,
			core.Corrections,
			core.Ledger != nil,
		),
		CostCenters: service.NewCostCenterService(log, core.Classifier),
		Health: map[string]handler.HealthChecker{
			"postgres": postgresDB,
			"mongodb":  mongoDB,
		},
	})

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	log.Info("Starting graceful shutdown...")

	var shutdownErr error
	if err := server.Stop(context.Background(), cfg.Server.ShutdownTimeout); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error("Error closing Kafka producer", "error", err)
			shutdownErr = err
		}
	}

	postgresDB.Close()

	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), cfg.MongoDB.Timeout)
	if err := mongoDB.Close(mongoCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}
	cancelMongo()

	if serverErr != nil || shutdownErr != nil {
		log.Error("API gateway shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("API gateway shutdown completed successfully")
}
