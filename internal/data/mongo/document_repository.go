package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/invoice-reconciler/internal/domain/document"
)

const (
	// DocumentCollectionName is the name of the raw document collection in MongoDB
	DocumentCollectionName = "invoice_documents"
)

// DocumentRepository implements the document.Repository interface for MongoDB
type DocumentRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewDocumentRepository creates a new MongoDB document repository
func NewDocumentRepository(logger *slog.Logger, db *mongo.Database) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique invoice index and the tenant listing index
func (r *DocumentRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(DocumentCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "invoice_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		r.logger.Error("Failed to create document indexes", "error", err)
		return fmt.Errorf("failed to create document indexes: %w", err)
	}
	return nil
}

// Save stores the document, replacing any earlier copy for the same invoice
func (r *DocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	collection := r.db.Collection(DocumentCollectionName)

	filter := bson.M{"invoice_id": doc.InvoiceID}
	_, err := collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to save document",
			"invoice_id", doc.InvoiceID.String(),
			"tenant_id", doc.TenantID,
			"error", err)
		return fmt.Errorf("failed to save document: %w", err)
	}

	return nil
}

// GetByInvoiceID returns ErrDocumentNotFound if nothing was archived for the invoice
func (r *DocumentRepository) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*document.Document, error) {
	collection := r.db.Collection(DocumentCollectionName)

	var doc document.Document
	err := collection.FindOne(ctx, bson.M{"invoice_id": invoiceID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, document.ErrDocumentNotFound{InvoiceID: invoiceID}
		}
		r.logger.Error("Failed to get document",
			"invoice_id", invoiceID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// ListByTenant returns documents newest first. An empty tenant lists every tenant.
func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*document.Document, error) {
	collection := r.db.Collection(DocumentCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, tenantFilter(tenantID), opts)
	if err != nil {
		r.logger.Error("Failed to list documents",
			"tenant_id", tenantID,
			"error", err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []*document.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode documents",
			"tenant_id", tenantID,
			"error", err)
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	return docs, nil
}

func (r *DocumentRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	collection := r.db.Collection(DocumentCollectionName)

	count, err := collection.CountDocuments(ctx, tenantFilter(tenantID))
	if err != nil {
		r.logger.Error("Failed to count documents",
			"tenant_id", tenantID,
			"error", err)
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}

	return count, nil
}

func tenantFilter(tenantID string) bson.M {
	if tenantID == "" {
		return bson.M{}
	}
	return bson.M{"tenant_id": tenantID}
}
