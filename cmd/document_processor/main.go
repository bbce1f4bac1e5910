package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/invoice-reconciler/internal/app"
	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/document_processor/components"
	"github.com/invoice-reconciler/internal/document_processor/consumer"
	"github.com/invoice-reconciler/internal/document_processor/outbox_poller"
	"github.com/invoice-reconciler/internal/document_processor/service"
	"github.com/invoice-reconciler/internal/logger"
	"github.com/invoice-reconciler/internal/platform/messaging/consumers"
	"github.com/invoice-reconciler/internal/platform/messaging/producers"
	"github.com/invoice-reconciler/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("document_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Document Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	processingService := components.CreateProcessingService(core.Workflow, log, cfg)
	documentEventHandler := consumer.NewDocumentEventHandler(log, processingService, dlqProducer)

	var wg sync.WaitGroup

	if err := kafkaConsumer.Subscribe(appCtx, documentEventHandler.HandleMessage); err != nil {
		log.Error("Failed to subscribe to document topic", "error", err)
		os.Exit(1)
	}

	// Ledger side effects can only be delivered when a ledger is configured
	if core.Ledger != nil {
		ledgerPublisher := outbox_poller.NewLedgerPublisher(core.Outbox, core.Ledger, log.With("component", "ledger_publisher"))
		poller := outbox_poller.NewPoller(&cfg.Outbox, core.Outbox, ledgerPublisher, log.With("component", "outbox_poller"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Start(appCtx)
		}()
	} else {
		log.Warn("Ledger not configured, outbox poller not started")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case <-kafkaConsumer.Done():
		log.Error("Kafka consumer stopped unexpectedly")
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop fetching before draining the pool so no new work is submitted
	select {
	case <-kafkaConsumer.Done():
	case <-shutdownCtx.Done():
		log.Warn("Kafka consumer did not stop before the shutdown timeout")
	}

	if wpService, ok := processingService.(*service.WorkerPoolProcessingService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	var shutdownErr error
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
		shutdownErr = err
	}

	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if shutdownErr != nil {
		log.Error("Document Processor shutdown completed with errors")
		return
	}
	log.Info("Document Processor shutdown completed successfully")
}
