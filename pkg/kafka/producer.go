package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const (
	writeBatchSize    = 100
	writeBatchTimeout = 10 * time.Millisecond
	writeMaxAttempts  = 3
)

// Event is one record to publish. Key feeds the partition hash so
// events with the same key stay ordered; Value is marshalled to JSON.
type Event struct {
	Key   string
	Value any
}

// Producer writes JSON events to a single topic, synchronously and
// with acks from all replicas.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer builds a Producer for the given topic.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    writeBatchSize,
			BatchTimeout: writeBatchTimeout,
			MaxAttempts:  writeMaxAttempts,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
		logger: logger.WithComponent("kafka-producer").With("topic", topic),
	}
}

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event value: %w", err)
	}
	return kafka.Message{Key: []byte(event.Key), Value: value}, nil
}

// Publish writes one event and waits for the broker to ack it.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message", "key", event.Key, "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("message published", "key", event.Key, "value_size", len(msg.Value))
	return nil
}

// PublishBatch writes the events in one broker round trip. Either the
// whole batch is handed to the writer or none of it is; a marshal
// failure on any event aborts before anything is sent.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := encode(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish batch", "count", len(msgs), "error", err)
		return fmt.Errorf("publishing batch to kafka: %w", err)
	}
	p.logger.Debug("batch published", "count", len(msgs))
	return nil
}

// Close flushes buffered writes and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
