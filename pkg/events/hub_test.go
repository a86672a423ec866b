package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/testutil"
)

func event(n int) *core.OrderEvent {
	return &core.OrderEvent{Order: testutil.StoredOrder(n, "1"), EndState: core.EndStateAdded}
}

func receive(t *testing.T, sub *Subscription) *core.OrderEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	a := hub.Subscribe("a")
	b := hub.Subscribe("b")
	assert.Equal(t, 2, hub.Len())

	hub.Publish(event(1), event(2))

	for _, sub := range []*Subscription{a, b} {
		assert.Equal(t, testutil.Hash(1), receive(t, sub).Order.Hash)
		assert.Equal(t, testutil.Hash(2), receive(t, sub).Order.Hash)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	sub := hub.Subscribe("gone")
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Len())

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// Publishing to nobody is fine.
	hub.Publish(event(1))
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(2, zerolog.Nop())
	slow := hub.Subscribe("slow")
	fast := hub.Subscribe("fast")

	hub.Publish(event(1), event(2))
	receive(t, fast)
	receive(t, fast)

	hub.Publish(event(3))
	assert.Equal(t, 1, hub.Len(), "slow subscriber is dropped once its queue is full")
	assert.Equal(t, testutil.Hash(3), receive(t, fast).Order.Hash)

	// The slow subscriber still drains what it had, then sees the close.
	assert.Equal(t, testutil.Hash(1), receive(t, slow).Order.Hash)
	assert.Equal(t, testutil.Hash(2), receive(t, slow).Order.Hash)
	_, ok := <-slow.Events()
	assert.False(t, ok)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(0, zerolog.Nop())
	sub := hub.Subscribe("a")
	require.NoError(t, hub.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)

	late := hub.Subscribe("late")
	_, ok = <-late.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())
}

func TestAddedEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	results := &core.AddOrdersResults{
		Accepted: []*core.AcceptedOrderResult{
			{Order: testutil.StoredOrder(1, "1"), IsNew: true},
			{Order: testutil.StoredOrder(2, "1"), IsNew: false},
		},
		Rejected: []*core.RejectedOrderResult{{Code: core.RejectedInvalidMakerAssetAmount}},
	}

	evs := AddedEvents(results, now)
	require.Len(t, evs, 2)
	for i, ev := range evs {
		assert.Equal(t, "2026-03-01T11:00:00Z", ev.Timestamp)
		assert.Equal(t, core.EndStateAdded, ev.EndState)
		assert.Same(t, results.Accepted[i].Order, ev.Order)
		assert.NotNil(t, ev.ContractEvents)
	}
	assert.Nil(t, AddedEvents(nil, now))
}
