package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrMissingTenant = errors.New("tenant id is required")

// DocumentRequest defines a Kafka message asking for a scanned document to be reconciled
type DocumentRequest struct {
	RequestID     uuid.UUID `json:"request_id"`
	TenantID      string    `json:"tenant_id"`
	FileName      string    `json:"file_name,omitempty"`
	RawText       string    `json:"raw_text"`
	OCRConfidence float64   `json:"ocr_confidence"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Validate checks the fields every consumer relies on. Blank text is valid; it still
// yields an invoice with default fields.
func (r *DocumentRequest) Validate() error {
	if r.TenantID == "" {
		return ErrMissingTenant
	}
	return nil
}
