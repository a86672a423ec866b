package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/messaging"
)

const (
	// DefaultTopic receives order events when no topic is configured.
	DefaultTopic = "meshmock-order-events"
	maxRetry     = 5
)

// Constructors are variables so tests can substitute mocks.
var (
	newSyncProducer = sarama.NewSyncProducer
	newConsumer     = sarama.NewConsumer
)

// EncodeEvent serializes an order event as a protobuf Struct.
func EncodeEvent(ev *core.OrderEvent) ([]byte, error) {
	s, err := api.ToStruct(ev)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses an event produced by EncodeEvent.
func DecodeEvent(data []byte) (*core.OrderEvent, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	ev := &core.OrderEvent{}
	if err := api.FromStruct(s, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// QueueEventSender implements the EventSender interface
// for sending order events to Kafka through sarama
type QueueEventSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueEventSender connects a synchronous producer to brokers.
func NewQueueEventSender(brokers []string, topic string) (*QueueEventSender, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true

	producer, err := newSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &QueueEventSender{producer: producer, topic: topic}, nil
}

// SendOrderEvents sends the events as one batch.
func (q *QueueEventSender) SendOrderEvents(ctx context.Context, events []*core.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, ev := range events {
		data, err := EncodeEvent(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: q.topic,
			Key:   sarama.ByteEncoder(messaging.EventKey(ev)),
			Value: sarama.ByteEncoder(data),
		})
	}

	if err := q.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the producer.
func (q *QueueEventSender) Close() error {
	return q.producer.Close()
}

// QueueEventConsumer reads order events from every partition of a topic.
type QueueEventConsumer struct {
	consumer  sarama.Consumer
	topic     string
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueueEventConsumer connects a consumer to brokers.
func NewQueueEventConsumer(brokers []string, topic string) (*QueueEventConsumer, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	consumer, err := newConsumer(brokers, sarama.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return &QueueEventConsumer{
		consumer: consumer,
		topic:    topic,
		done:     make(chan struct{}),
	}, nil
}

// ConsumeOrderEvents delivers new events to handler until Close is called or
// a partition fails. Handler calls are serialized.
func (c *QueueEventConsumer) ConsumeOrderEvents(handler func(*core.OrderEvent) error) error {
	partitions, err := c.consumer.Partitions(c.topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}
	if len(partitions) == 0 {
		partitions = []int32{0}
	}

	msgs := make(chan *sarama.ConsumerMessage)
	errs := make(chan error, len(partitions))
	var wg sync.WaitGroup

	for _, partition := range partitions {
		pc, err := c.consumer.ConsumePartition(c.topic, partition, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}
		wg.Add(1)
		go func(pc sarama.PartitionConsumer) {
			defer wg.Done()
			defer pc.Close()
			for {
				select {
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					select {
					case msgs <- msg:
					case <-c.done:
						return
					}
				case cerr, ok := <-pc.Errors():
					if ok {
						errs <- cerr
						return
					}
				case <-c.done:
					return
				}
			}
		}(pc)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	for {
		select {
		case msg := <-msgs:
			ev, err := DecodeEvent(msg.Value)
			if err != nil {
				return err
			}
			if err := handler(ev); err != nil {
				return err
			}
		case err := <-errs:
			return err
		case <-finished:
			select {
			case err := <-errs:
				return err
			default:
				return nil
			}
		case <-c.done:
			return nil
		}
	}
}

// Close stops consumption and closes the consumer.
func (c *QueueEventConsumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.consumer.Close()
	})
	return err
}

var _ messaging.EventSender = (*QueueEventSender)(nil)
