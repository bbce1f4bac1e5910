package producers

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/invoice-reconciler/internal/domain/shared"
)

// DocumentRequestPublisher queues documents for asynchronous reconciliation
type DocumentRequestPublisher interface {
	PublishDocumentRequest(ctx context.Context, req *shared.DocumentRequest) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, msg kafka.Message, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// topicAdmin is the part of *kafka.Conn used to provision topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}
