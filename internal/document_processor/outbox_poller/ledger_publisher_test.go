package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/invoice-reconciler/internal/domain/outbox"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/ledger"
)

func ledgerMessage(t *testing.T) *outbox.Message {
	msg, err := outbox.NewLedgerUpdateMessage(uuid.New(), outbox.LedgerCostCenterUpdate{TransactionID: "tx-1", CostCenter: "OPS"})
	require.NoError(t, err)
	msg.ID = 11
	return msg
}

func TestLedgerPublisher_PublishToLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("updates ledger and marks processed", func(t *testing.T) {
		repo, updater := &MockOutboxRepo{}, &MockLedgerUpdater{}
		publisher := NewLedgerPublisher(repo, updater, newTestLogger())
		msg := ledgerMessage(t)

		updater.On("UpdateTransaction", mock.Anything, "tx-1", "OPS").Return(nil).Once()
		repo.On("UpdateStatus", mock.Anything, int64(11), shared.OutboxStatusProcessed).Return(nil).Once()

		require.NoError(t, publisher.PublishToLedger(ctx, msg))
		updater.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("ledger outage is retriable", func(t *testing.T) {
		repo, updater := &MockOutboxRepo{}, &MockLedgerUpdater{}
		publisher := NewLedgerPublisher(repo, updater, newTestLogger())

		updater.On("UpdateTransaction", mock.Anything, "tx-1", "OPS").Return(eris.New("ledger returned status 503")).Once()

		err := publisher.PublishToLedger(ctx, ledgerMessage(t))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrPermanent)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown transaction is permanent", func(t *testing.T) {
		repo, updater := &MockOutboxRepo{}, &MockLedgerUpdater{}
		publisher := NewLedgerPublisher(repo, updater, newTestLogger())

		updater.On("UpdateTransaction", mock.Anything, "tx-1", "OPS").Return(ledger.ErrTransactionNotFound).Once()

		err := publisher.PublishToLedger(ctx, ledgerMessage(t))
		assert.ErrorIs(t, err, ErrPermanent)
	})

	t.Run("bad payloads are permanent", func(t *testing.T) {
		publisher := NewLedgerPublisher(&MockOutboxRepo{}, &MockLedgerUpdater{}, newTestLogger())

		broken := ledgerMessage(t)
		broken.Payload = json.RawMessage(`{"transaction_id":`)
		assert.ErrorIs(t, publisher.PublishToLedger(ctx, broken), ErrPermanent)

		incomplete := ledgerMessage(t)
		incomplete.Payload = json.RawMessage(`{"transaction_id":"tx-1"}`)
		assert.ErrorIs(t, publisher.PublishToLedger(ctx, incomplete), ErrPermanent)

		unknown := ledgerMessage(t)
		unknown.Effect = shared.EffectType("ledger.delete")
		assert.ErrorIs(t, publisher.PublishToLedger(ctx, unknown), ErrPermanent)
	})

	t.Run("status update failure", func(t *testing.T) {
		repo, updater := &MockOutboxRepo{}, &MockLedgerUpdater{}
		publisher := NewLedgerPublisher(repo, updater, newTestLogger())
		dbErr := errors.New("db error")

		updater.On("UpdateTransaction", mock.Anything, "tx-1", "OPS").Return(nil).Once()
		repo.On("UpdateStatus", mock.Anything, int64(11), shared.OutboxStatusProcessed).Return(dbErr).Once()

		err := publisher.PublishToLedger(ctx, ledgerMessage(t))
		assert.ErrorIs(t, err, dbErr)
	})
}
