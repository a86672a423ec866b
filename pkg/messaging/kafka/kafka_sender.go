package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/messaging"
)

// sendTimeout bounds one batch when the caller's context has no deadline.
const sendTimeout = 5 * time.Second

// messageWriter is the part of kafka.Writer the sender uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventSender implements EventSender using Kafka
type KafkaEventSender struct {
	writer messageWriter
	topic  string
}

// NewKafkaEventSender creates a new Kafka event sender
func NewKafkaEventSender(brokerAddr, topic string) (*KafkaEventSender, error) {
	if brokerAddr == "" || topic == "" {
		return nil, fmt.Errorf("kafka sender needs a broker address and a topic")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokerAddr),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &KafkaEventSender{
		writer: writer,
		topic:  topic,
	}, nil
}

// SendOrderEvents writes one message per event, keyed by order hash so every
// event for an order lands on the same partition.
func (k *KafkaEventSender) SendOrderEvents(ctx context.Context, events []*core.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		data, err := messaging.EncodeEvent(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   messaging.EventKey(ev),
			Value: data,
			Time:  time.Now(),
		})
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sendTimeout)
		defer cancel()
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Topic returns the topic events are written to.
func (k *KafkaEventSender) Topic() string {
	return k.topic
}

// Close closes the Kafka writer
func (k *KafkaEventSender) Close() error {
	return k.writer.Close()
}

var _ messaging.EventSender = (*KafkaEventSender)(nil)
