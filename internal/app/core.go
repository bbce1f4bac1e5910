// Package app assembles the reconciliation core shared by the api gateway and the
// document processor.
package app

import (
	"context"
	"log/slog"

	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/data/mongo"
	"github.com/invoice-reconciler/internal/data/postgres"
	"github.com/invoice-reconciler/internal/data/seed"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/domain/outbox"
	"github.com/invoice-reconciler/internal/extraction"
	"github.com/invoice-reconciler/internal/matching"
	"github.com/invoice-reconciler/internal/platform/ledger"
	"github.com/invoice-reconciler/internal/platform/persistence"
	"github.com/invoice-reconciler/internal/reconciliation"
)

// Core holds the repositories and services built on top of the two databases
type Core struct {
	Invoices    invoice.Repository
	CostCenters costcenter.Repository
	Corrections costcenter.CorrectionRepository
	Outbox      outbox.Repository
	Documents   *mongo.DocumentRepository
	Classifier  *classification.Classifier
	Ledger      *ledger.Client // nil when no ledger is configured
	Workflow    *reconciliation.Workflow
}

// NewCore wires the reconciliation workflow. Seeding and the initial classifier
// load are best effort; failures are logged and the service still starts.
func NewCore(ctx context.Context, logger *slog.Logger, cfg *config.Config, pgDB *persistence.PostgresDB, mongoDB *persistence.MongoDB) *Core {
	c := &Core{
		Invoices:    postgres.NewInvoiceRepository(logger, pgDB),
		CostCenters: postgres.NewCostCenterRepository(logger, pgDB),
		Corrections: postgres.NewCorrectionRepository(logger, pgDB),
		Outbox:      postgres.NewOutboxRepository(logger, pgDB),
		Documents:   mongo.NewDocumentRepository(logger, mongoDB.Database()),
	}

	if err := c.Documents.EnsureIndexes(ctx); err != nil {
		logger.Warn("Document indexes not created", "error", err)
	}
	if err := seed.LoadAndApply(ctx, logger, c.CostCenters, cfg.Classifier.SeedPath); err != nil {
		logger.Warn("Cost center seeding failed", "path", cfg.Classifier.SeedPath, "error", err)
	}

	c.Classifier = classification.NewClassifier(logger.With("component", "classifier"), cfg.Classifier, c.CostCenters, c.Corrections)
	if _, err := c.Classifier.Refresh(ctx); err != nil {
		logger.Warn("Initial cost center load failed", "error", err)
	}

	deps := reconciliation.Dependencies{
		DB:          pgDB,
		Extractor:   extraction.NewExtractor(cfg.Extraction),
		Classifier:  c.Classifier,
		Matcher:     matching.NewMatcher(cfg.Reconciliation),
		Invoices:    c.Invoices,
		Corrections: c.Corrections,
		Outbox:      c.Outbox,
		Documents:   c.Documents,
	}
	if cfg.Ledger.Enabled() {
		c.Ledger = ledger.NewClient(logger.With("component", "ledger"), cfg.Ledger)
		deps.Ledger = c.Ledger
	} else {
		logger.Warn("Ledger not configured, invoices will not be matched")
	}

	c.Workflow = reconciliation.NewWorkflow(logger.With("component", "workflow"), cfg.Reconciliation, cfg.Ledger, deps)
	return c
}
