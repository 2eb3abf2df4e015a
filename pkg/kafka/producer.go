package kafka

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fleetdata/blobsink/pkg/config"
)

const batchTimeoutMillis = 100 // Batch timeout in milliseconds

// Producer wraps a kafka.Writer. It exists for the seed tool; the sink
// itself only consumes.
type Producer struct {
	ctx    context.Context
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer.
func NewProducer(ctx context.Context, cfg config.KafkaConfig) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeoutMillis * time.Millisecond,
		// RequiredAcks is an int, so cast the constant.
		RequiredAcks: int(kafka.RequireAll),
	})

	return &Producer{ctx: ctx, writer: w}
}

// Publish sends a single JSON-encoded message.
func (p *Producer) Publish(topic string, key []byte, value map[string]any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(p.ctx, msg); err != nil {
		log.Printf("[Kafka] publish failed topic=%s: %v", topic, err)
		return err
	}
	return nil
}

// Close shuts down the writer cleanly.
func (p *Producer) Close() error {
	return p.writer.Close()
}
