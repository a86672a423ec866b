package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/messaging"
	"github.com/erain9/meshmock/pkg/testutil"
)

type fakeWriter struct {
	msgs        []kafka.Message
	hadDeadline bool
	err         error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.hadDeadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaEventSender_SendOrderEvents(t *testing.T) {
	writer := &fakeWriter{}
	sender := &KafkaEventSender{writer: writer, topic: "order-events"}

	evs := []*core.OrderEvent{
		{Timestamp: "2026-01-01T00:00:00Z", Order: testutil.StoredOrder(1, "5"), EndState: core.EndStateAdded},
		{Timestamp: "2026-01-01T00:00:00Z", Order: testutil.StoredOrder(2, "6"), EndState: core.EndStateAdded},
	}
	require.NoError(t, sender.SendOrderEvents(context.Background(), evs))
	require.Len(t, writer.msgs, 2)
	assert.True(t, writer.hadDeadline, "sends are bounded even without a caller deadline")

	for i, msg := range writer.msgs {
		assert.Equal(t, []byte(testutil.Hash(i+1)), msg.Key)
		ev, err := messaging.DecodeEvent(msg.Value)
		require.NoError(t, err)
		assert.Equal(t, evs[i].Order.Hash, ev.Order.Hash)
	}

	require.NoError(t, sender.SendOrderEvents(context.Background(), nil))
	assert.Len(t, writer.msgs, 2)

	writer.err = errors.New("broker gone")
	err := sender.SendOrderEvents(context.Background(), evs)
	assert.ErrorIs(t, err, writer.err)
}

func TestNewKafkaEventSender_Validates(t *testing.T) {
	_, err := NewKafkaEventSender("", "topic")
	assert.Error(t, err)

	sender, err := NewKafkaEventSender("localhost:9092", "order-events")
	require.NoError(t, err)
	assert.Equal(t, "order-events", sender.Topic())
	assert.NoError(t, sender.Close())
}

func TestEventConsumer_Consume(t *testing.T) {
	good, err := messaging.EncodeEvent(&core.OrderEvent{Order: testutil.StoredOrder(3, "1"), EndState: core.EndStateAdded})
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("not json")},
		{Offset: 3, Value: good},
	}}
	consumer := &EventConsumer{reader: reader, logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan *core.OrderEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, func(ev *core.OrderEvent) error {
			received <- ev
			return nil
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case ev := <-received:
			assert.Equal(t, testutil.Hash(3), ev.Order.Hash)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}

	cancel()
	require.NoError(t, <-done)

	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3}, reader.committed, "undecodable messages are committed and skipped")
}

func TestEventConsumer_HandlerError(t *testing.T) {
	good, err := messaging.EncodeEvent(&core.OrderEvent{Order: testutil.StoredOrder(3, "1")})
	require.NoError(t, err)
	reader := &fakeReader{queue: []kafka.Message{{Offset: 9, Value: good}}}
	consumer := &EventConsumer{reader: reader, logger: zerolog.Nop()}

	boom := errors.New("boom")
	err = consumer.Consume(context.Background(), func(*core.OrderEvent) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, reader.committed)
}

func TestKafkaRoundTrip(t *testing.T) {
	addr := testutil.KafkaAddr()
	testutil.SkipIfKafkaUnavailable(t, addr)

	topic := "meshmock-test-" + time.Now().Format("150405.000000")
	sender, err := NewKafkaEventSender(addr, topic)
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	ev := &core.OrderEvent{Timestamp: "2026-01-01T00:00:00Z", Order: testutil.StoredOrder(4, "1"), EndState: core.EndStateAdded}
	require.NoError(t, sender.SendOrderEvents(ctx, []*core.OrderEvent{ev}))

	consumer, err := NewEventConsumer(addr, topic, topic+"-group", zerolog.Nop())
	require.NoError(t, err)
	defer consumer.Close()

	got := make(chan *core.OrderEvent, 8)
	go func() {
		_ = consumer.Consume(ctx, func(ev *core.OrderEvent) error {
			got <- ev
			return nil
		})
	}()

	select {
	case ev := <-got:
		assert.Equal(t, testutil.Hash(4), ev.Order.Hash)
	case <-ctx.Done():
		t.Skip("Kafka did not deliver the event in time")
	}
}
