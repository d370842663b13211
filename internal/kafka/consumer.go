package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type Handler func(context.Context, kafka.Message) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	topic  string
	reader messageReader
	log    zerolog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, log zerolog.Logger) *Consumer {
	return &Consumer{
		topic: topic,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log: log.With().Str("component", "kafka-consumer").Str("topic", topic).Logger(),
	}
}

func (c *Consumer) Topic() string { return c.topic }

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume feeds every message to handler until ctx ends. A handler error is
// logged and the message skipped; only read failures stop the loop.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := handler(ctx, msg); err != nil {
			c.log.Warn().Err(err).Int64("offset", msg.Offset).Str("key", string(msg.Key)).Msg("skipping message")
		}
	}
}
