package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/erain9/meshmock/pkg/core"
)

// EventSender defines an interface for publishing order events.
// This helps decouple the server from specific implementations
// like Kafka in the queue package
type EventSender interface {
	SendOrderEvents(ctx context.Context, events []*core.OrderEvent) error
	Close() error
}

// EventKey is the partition key of an event: its order's lowercase hash.
func EventKey(ev *core.OrderEvent) []byte {
	if ev == nil || ev.Order == nil {
		return nil
	}
	return []byte(strings.ToLower(ev.Order.Hash))
}

// EncodeEvent serializes an event as JSON.
func EncodeEvent(ev *core.OrderEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses an event produced by EncodeEvent.
func DecodeEvent(data []byte) (*core.OrderEvent, error) {
	var ev core.OrderEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &ev, nil
}

// MultiSender sends every batch to each of its senders in turn.
type MultiSender []EventSender

// SendOrderEvents tries every sender and joins their errors.
func (m MultiSender) SendOrderEvents(ctx context.Context, events []*core.OrderEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.SendOrderEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sender.
func (m MultiSender) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ EventSender = MultiSender(nil)
