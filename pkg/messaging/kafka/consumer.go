package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/messaging"
)

// messageReader is the part of kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventConsumer reads order events written by KafkaEventSender.
type EventConsumer struct {
	reader messageReader
	logger zerolog.Logger
}

// NewEventConsumer creates a consumer in the given consumer group.
func NewEventConsumer(brokerAddr, topic, groupID string, logger zerolog.Logger) (*EventConsumer, error) {
	if brokerAddr == "" || topic == "" {
		return nil, fmt.Errorf("kafka consumer needs a broker address and a topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &EventConsumer{reader: reader, logger: logger}, nil
}

// Consume hands each event to handle and commits it once handled. Messages
// that do not decode are committed and skipped. It returns nil when ctx ends.
func (c *EventConsumer) Consume(ctx context.Context, handle func(*core.OrderEvent) error) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		ev, err := messaging.DecodeEvent(msg.Value)
		if err != nil {
			c.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping undecodable message")
		} else if err := handle(ev); err != nil {
			return fmt.Errorf("failed to handle event at offset %d: %w", msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit message: %w", err)
		}
	}
}

// Close closes the reader.
func (c *EventConsumer) Close() error {
	return c.reader.Close()
}

// SetupConsumer starts a consumer that logs every order event it reads. It
// runs until ctx is done.
func SetupConsumer(ctx context.Context, brokerAddr, topic, groupID string, logger zerolog.Logger) (*EventConsumer, error) {
	consumer, err := NewEventConsumer(brokerAddr, topic, groupID, logger)
	if err != nil {
		return nil, err
	}

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")
		err := consumer.Consume(ctx, func(ev *core.OrderEvent) error {
			entry := logger.Info().
				Str("end_state", string(ev.EndState)).
				Str("timestamp", ev.Timestamp).
				Int("contract_events", len(ev.ContractEvents))
			if ev.Order != nil {
				entry = entry.Str("hash", ev.Order.Hash).Str("maker", ev.Order.MakerAddress)
			}
			entry.Msg("Received order event")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return consumer, nil
}
