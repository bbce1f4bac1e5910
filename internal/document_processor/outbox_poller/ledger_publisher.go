package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invoice-reconciler/internal/domain/outbox"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/ledger"
)

// ErrPermanent marks outbox messages that must not be retried
var ErrPermanent = errors.New("outbox message cannot be delivered")

// LedgerPublisher delivers outbox effects to the ledger
type LedgerPublisher interface {
	PublishToLedger(ctx context.Context, message *outbox.Message) error
}

// LedgerUpdater is the ledger write used by cost center effects
type LedgerUpdater interface {
	UpdateTransaction(ctx context.Context, transactionID, costCenter string) error
}

// LedgerPublisherImpl implements LedgerPublisher
type LedgerPublisherImpl struct {
	outboxRepo outbox.Repository
	ledger     LedgerUpdater
	logger     *slog.Logger
}

func NewLedgerPublisher(
	outboxRepo outbox.Repository,
	updater LedgerUpdater,
	logger *slog.Logger,
) LedgerPublisher {
	return &LedgerPublisherImpl{
		outboxRepo: outboxRepo,
		ledger:     updater,
		logger:     logger,
	}
}

// PublishToLedger applies the effect and marks the message PROCESSED.
// Unknown effects, bad payloads and missing transactions wrap ErrPermanent.
func (p *LedgerPublisherImpl) PublishToLedger(ctx context.Context, message *outbox.Message) error {
	logger := p.logger.With("outbox_id", message.ID, "invoice_id", message.InvoiceID.String())

	if message.Effect != shared.EffectLedgerUpdateCostCenter {
		return fmt.Errorf("%w: unknown effect %q", ErrPermanent, message.Effect)
	}

	update, err := message.LedgerUpdate()
	if err != nil {
		return fmt.Errorf("%w: unmarshal payload for outbox %d: %w", ErrPermanent, message.ID, err)
	}
	if update.TransactionID == "" || update.CostCenter == "" {
		return fmt.Errorf("%w: outbox %d has an incomplete payload", ErrPermanent, message.ID)
	}

	if err := p.ledger.UpdateTransaction(ctx, update.TransactionID, update.CostCenter); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return fmt.Errorf("failed to update ledger transaction %s: %w", update.TransactionID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("ledger update for %s OK, but failed to mark outbox %d as PROCESSED: %w", update.TransactionID, message.ID, err)
	}

	logger.Info("Ledger cost center updated",
		"transaction_id", update.TransactionID,
		"cost_center", update.CostCenter,
	)
	return nil
}
