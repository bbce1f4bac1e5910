package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/domain/shared"
)

// LedgerCostCenterUpdate is the payload of a ledger.update_cost_center effect
type LedgerCostCenterUpdate struct {
	TransactionID string `json:"transaction_id"`
	CostCenter    string `json:"cost_center"`
}

// Message stores a scheduled side effect for reliable delivery
type Message struct {
	ID            int64               `json:"id"`
	InvoiceID     uuid.UUID           `json:"invoice_id"`
	Effect        shared.EffectType   `json:"effect"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	LastError     string              `json:"last_error,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewLedgerUpdateMessage schedules propagating a cost center onto a ledger transaction
func NewLedgerUpdateMessage(invoiceID uuid.UUID, update LedgerCostCenterUpdate) (*Message, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return nil, err
	}

	return &Message{
		InvoiceID: invoiceID,
		Effect:    shared.EffectLedgerUpdateCostCenter,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts(reason string) {
	m.Attempts++
	m.LastError = reason
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// LedgerUpdate decodes the payload of a ledger cost center effect
func (m *Message) LedgerUpdate() (*LedgerCostCenterUpdate, error) {
	var update LedgerCostCenterUpdate
	if err := json.Unmarshal(m.Payload, &update); err != nil {
		return nil, err
	}
	return &update, nil
}
