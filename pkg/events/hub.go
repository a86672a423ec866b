// Package events fans order events out to live subscribers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/messaging"
)

// DefaultBuffer is the per-subscriber queue length used when none is given.
const DefaultBuffer = 256

// Hub delivers every published event to every current subscriber. Publishing
// never blocks: a subscriber whose queue is full is dropped and its channel
// closed.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	logger zerolog.Logger
}

// Subscription is one consumer's view of a Hub.
type Subscription struct {
	id     string
	hub    *Hub
	events chan *core.OrderEvent
	once   sync.Once
}

// NewHub creates a Hub with the given per-subscriber buffer.
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(id string) *Subscription {
	sub := &Subscription{
		id:     id,
		hub:    h,
		events: make(chan *core.OrderEvent, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(sub.events) })
		return sub
	}
	h.subs[sub] = struct{}{}
	h.logger.Debug().Str("subscriber", id).Int("total", len(h.subs)).Msg("Subscriber added")
	return sub
}

// Publish delivers events to every subscriber in order.
func (h *Hub) Publish(events ...*core.OrderEvent) {
	if len(events) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.offer(events) {
			h.logger.Warn().Str("subscriber", sub.id).Msg("Subscriber too slow, dropping")
			h.removeLocked(sub)
		}
	}
}

func (s *Subscription) offer(events []*core.OrderEvent) bool {
	for _, ev := range events {
		select {
		case s.events <- ev:
		default:
			return false
		}
	}
	return true
}

// SendOrderEvents publishes events. It lets the hub sit alongside the queue
// senders behind one interface.
func (h *Hub) SendOrderEvents(_ context.Context, events []*core.OrderEvent) error {
	h.Publish(events...)
	return nil
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscriber. Later subscriptions are closed immediately.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		h.removeLocked(sub)
	}
	return nil
}

func (h *Hub) removeLocked(sub *Subscription) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	sub.once.Do(func() { close(sub.events) })
	h.logger.Debug().Str("subscriber", sub.id).Int("total", len(h.subs)).Msg("Subscriber removed")
}

// ID returns the id the subscription was created with.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the subscription's event channel. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan *core.OrderEvent {
	return s.events
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}

// AddedEvents builds one ADDED event per accepted order.
func AddedEvents(results *core.AddOrdersResults, now time.Time) []*core.OrderEvent {
	if results == nil {
		return nil
	}
	ts := now.UTC().Format(time.RFC3339)
	out := make([]*core.OrderEvent, 0, len(results.Accepted))
	for _, accepted := range results.Accepted {
		out = append(out, &core.OrderEvent{
			Timestamp:      ts,
			Order:          accepted.Order,
			EndState:       core.EndStateAdded,
			ContractEvents: []core.ContractEvent{},
		})
	}
	return out
}

var _ messaging.EventSender = (*Hub)(nil)
