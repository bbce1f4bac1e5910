package producers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/messaging"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDocumentRequestProducer_PublishDocumentRequest(t *testing.T) {
	ctx := context.Background()
	req := &shared.DocumentRequest{
		RequestID:     uuid.New(),
		TenantID:      "tenant-a",
		FileName:      "acme.pdf",
		RawText:       "Invoice No: INV-1\nTotal: 10.00",
		OCRConfidence: 0.9,
		CorrelationID: "corr-123",
		Timestamp:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DocumentRequestProducer{logger: newTestLogger(), writer: mockWriter, topic: "documents"}
		expected, _ := json.Marshal(req)

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			msg := msgs[0]
			return string(msg.Key) == "tenant-a" &&
				string(msg.Value) == string(expected) &&
				messaging.Header(msg, messaging.HeaderCorrelationID) == "corr-123" &&
				messaging.Header(msg, messaging.HeaderTenantID) == "tenant-a"
		})).Return(nil).Once()

		require.NoError(t, producer.PublishDocumentRequest(ctx, req))
		mockWriter.AssertExpectations(t)
	})

	t.Run("InvalidRequestIsNotWritten", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DocumentRequestProducer{logger: newTestLogger(), writer: mockWriter, topic: "documents"}

		err := producer.PublishDocumentRequest(ctx, &shared.DocumentRequest{RawText: "Invoice INV-1"})
		assert.ErrorIs(t, err, shared.ErrMissingTenant)
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DocumentRequestProducer{logger: newTestLogger(), writer: mockWriter, topic: "documents"}
		writerErr := errors.New("leader not available")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		err := producer.PublishDocumentRequest(ctx, req)
		assert.ErrorIs(t, err, writerErr)
		mockWriter.AssertExpectations(t)
	})
}

func TestDocumentRequestProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	producer := &DocumentRequestProducer{logger: newTestLogger(), writer: mockWriter, topic: "documents"}
	closeErr := errors.New("close failed")
	mockWriter.On("Close").Return(closeErr).Once()

	err := producer.Close()
	assert.ErrorIs(t, err, closeErr)
	mockWriter.AssertExpectations(t)
}
