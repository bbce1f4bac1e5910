package mongo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/invoice-reconciler/internal/domain/document"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDocument() *document.Document {
	text := "ACME LTD\nInvoice No: INV-2024-001\nTotal: 1,250.00"
	return &document.Document{
		InvoiceID:     uuid.New(),
		TenantID:      "tenant-a",
		FileName:      "acme.pdf",
		DocumentHash:  document.Hash(text),
		RawText:       text,
		OCRConfidence: 0.93,
		Logos:         []document.Logo{{Name: "Acme", Score: 0.8}},
		CreatedAt:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// toBSON round-trips a document through the driver codec so mock cursors carry realistic data
func toBSON(t require.TestingT, doc *document.Document) bson.D {
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func TestDocumentRepository_Save(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upserts", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		err := repo.Save(context.Background(), sampleDocument())
		assert.NoError(mt, err)
	})

	mt.Run("write failure", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted at shutdown",
		}))

		err := repo.Save(context.Background(), sampleDocument())
		assert.ErrorContains(mt, err, "failed to save document")
	})
}

func TestDocumentRepository_GetByInvoiceID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "test." + DocumentCollectionName

	mt.Run("found", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		stored := sampleDocument()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toBSON(mt, stored)))

		doc, err := repo.GetByInvoiceID(context.Background(), stored.InvoiceID)
		require.NoError(mt, err)
		assert.Equal(mt, stored.InvoiceID, doc.InvoiceID)
		assert.Equal(mt, stored.RawText, doc.RawText)
		assert.Equal(mt, stored.DocumentHash, doc.DocumentHash)
		assert.Equal(mt, "Acme", doc.Logos[0].Name)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		id := uuid.New()
		_, err := repo.GetByInvoiceID(context.Background(), id)
		assert.ErrorIs(mt, err, document.ErrDocumentNotFound{InvoiceID: id})
	})
}

func TestDocumentRepository_ListByTenant(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "test." + DocumentCollectionName

	mt.Run("returns batch", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		first, second := sampleDocument(), sampleDocument()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toBSON(mt, first), toBSON(mt, second)))

		docs, err := repo.ListByTenant(context.Background(), "tenant-a", 10, 0)
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		assert.Equal(mt, first.InvoiceID, docs[0].InvoiceID)
		assert.Equal(mt, second.InvoiceID, docs[1].InvoiceID)
	})

	mt.Run("empty", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		docs, err := repo.ListByTenant(context.Background(), "", 10, 0)
		require.NoError(mt, err)
		assert.Empty(mt, docs)
	})
}

func TestDocumentRepository_CountByTenant(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "test." + DocumentCollectionName

	mt.Run("counts", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		count, err := repo.CountByTenant(context.Background(), "tenant-a")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
	})

	mt.Run("failure", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad query"}))

		_, err := repo.CountByTenant(context.Background(), "tenant-a")
		assert.ErrorContains(mt, err, "failed to count documents")
	})
}

func TestDocumentRepository_EnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates", func(mt *mtest.T) {
		repo := NewDocumentRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, repo.EnsureIndexes(context.Background()))
	})
}

var _ document.Repository = (*DocumentRepository)(nil)
