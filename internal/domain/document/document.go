package document

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logo is a brand mark detected by the OCR engine
type Logo struct {
	Name  string  `json:"name" bson:"name"`
	Score float64 `json:"score" bson:"score"`
}

// Document keeps the raw OCR output an invoice was extracted from
type Document struct {
	InvoiceID     uuid.UUID              `json:"invoice_id" bson:"invoice_id"`
	TenantID      string                 `json:"tenant_id" bson:"tenant_id"`
	FileName      string                 `json:"file_name,omitempty" bson:"file_name,omitempty"`
	DocumentHash  string                 `json:"document_hash" bson:"document_hash"`
	RawText       string                 `json:"raw_text" bson:"raw_text"`
	OCRConfidence float64                `json:"ocr_confidence" bson:"ocr_confidence"`
	Logos         []Logo                 `json:"logos,omitempty" bson:"logos,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty" bson:"payload,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at" bson:"created_at"`
}

// Hash fingerprints document text so duplicate uploads can be recognised.
// Whitespace differences introduced by OCR do not change the hash.
func Hash(rawText string) string {
	normalized := strings.Join(strings.Fields(rawText), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
