// Package kafka wraps segmentio/kafka-go with the small producer and
// consumer surface the services need: JSON events out, at-least-once
// handler dispatch in.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const (
	fetchMinBytes = 1_000
	fetchMaxBytes = 10_000_000
)

// MessageHandler processes one message. Returning an error leaves the
// offset uncommitted, so the message is redelivered after a restart or
// rebalance. Handlers that cannot ever succeed on a message should log
// and return nil instead of wedging the partition.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer pulls messages from one topic and feeds them to a handler,
// committing offsets only after the handler succeeds.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	handle MessageHandler
}

// NewConsumer builds a Consumer in the configured consumer group,
// starting from the latest offset for fresh groups.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    fetchMinBytes,
			MaxBytes:    fetchMaxBytes,
			StartOffset: kafka.LastOffset,
		}),
		logger: logger.WithComponent("kafka-consumer").With("topic", topic),
		handle: handler,
	}
}

// Start consumes until ctx is cancelled, then closes the reader. Fetch
// errors are logged and retried rather than returned; a broker outage
// should not kill the service.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return c.reader.Close()
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.dispatch(ctx, msg)
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("message received",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"value_size", len(msg.Value),
	)
	if err := c.handle(ctx, msg.Key, msg.Value); err != nil {
		c.logger.Error("failed to process message, offset not committed",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit offset",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// Close releases the underlying reader. Safe to call after Start has
// returned.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decode kafka message: %w", err)
	}
	return v, nil
}
