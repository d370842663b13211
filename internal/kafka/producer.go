package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	brokers []string
	writer  messageWriter
	log     zerolog.Logger
	backoff time.Duration
}

func NewProducer(brokers []string, log zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		brokers: brokers,
		writer:  writer,
		log:     log.With().Str("component", "kafka-producer").Logger(),
		backoff: 500 * time.Millisecond,
	}
}

// Publish writes payload as JSON keyed by key, so events for one quote
// fingerprint stay on one partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to topic %s: %w", topic, err)
	}

	p.log.Debug().Str("topic", topic).Str("key", key).Int("bytes", len(data)).Msg("published event")
	return nil
}

func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload any, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := p.Publish(ctx, topic, key, payload)
		if err == nil {
			return nil
		}

		lastErr = err
		p.log.Warn().Err(err).Int("attempt", i+1).Str("topic", topic).Msg("publish attempt failed")

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * p.backoff):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection verifies the producer's brokers are reachable.
func (p *Producer) CheckConnection(ctx context.Context) error {
	partitions, err := CheckConnection(ctx, p.brokers)
	if err != nil {
		return err
	}
	p.log.Info().Int("partitions", partitions).Msg("connected to kafka")
	return nil
}

// CheckConnection dials the first reachable broker and counts the partitions
// it knows about.
func CheckConnection(ctx context.Context, brokers []string) (int, error) {
	if len(brokers) == 0 {
		return 0, errors.New("no kafka brokers configured")
	}

	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		partitions, err := conn.ReadPartitions()
		_ = conn.Close()
		if err != nil {
			return 0, fmt.Errorf("failed to read partitions from %s: %w", broker, err)
		}
		return len(partitions), nil
	}
	return 0, fmt.Errorf("failed to connect to Kafka: %w", lastErr)
}
