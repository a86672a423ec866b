package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/erain9/meshmock/pkg/core"
)

// ErrDuplicateHash is returned when two records in one snapshot share a hash.
var ErrDuplicateHash = errors.New("duplicate order hash")

// snapshot is an immutable view of the store's records.
type snapshot struct {
	orders []*core.OrderWithMetadata
	byHash map[string]*core.OrderWithMetadata
}

func newSnapshot(orders []*core.OrderWithMetadata) (*snapshot, error) {
	s := &snapshot{
		orders: make([]*core.OrderWithMetadata, len(orders)),
		byHash: make(map[string]*core.OrderWithMetadata, len(orders)),
	}
	copy(s.orders, orders)

	for i, order := range s.orders {
		if order == nil {
			return nil, fmt.Errorf("order %d is nil", i)
		}
		key := strings.ToLower(order.Hash)
		if _, exists := s.byHash[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHash, order.Hash)
		}
		s.byHash[key] = order
	}
	return s, nil
}

// MemoryBackend implements core.OrderStore over an in-memory snapshot. Readers
// never lock; Replace swaps the whole snapshot at once so a reader sees either
// the old records or the new ones, never a mix.
type MemoryBackend struct {
	current atomic.Pointer[snapshot]
}

// NewMemoryBackend creates a MemoryBackend serving orders in the given order.
func NewMemoryBackend(orders []*core.OrderWithMetadata) (*MemoryBackend, error) {
	b := &MemoryBackend{}
	if err := b.Replace(orders); err != nil {
		return nil, err
	}
	return b, nil
}

// Replace atomically swaps the served records for orders.
func (b *MemoryBackend) Replace(orders []*core.OrderWithMetadata) error {
	s, err := newSnapshot(orders)
	if err != nil {
		return err
	}
	b.current.Store(s)
	return nil
}

// Orders returns every record in snapshot order.
func (b *MemoryBackend) Orders(ctx context.Context) ([]*core.OrderWithMetadata, error) {
	return b.current.Load().orders, nil
}

// OrderByHash returns the record with the given hash, or nil.
func (b *MemoryBackend) OrderByHash(ctx context.Context, hash string) (*core.OrderWithMetadata, error) {
	return b.current.Load().byHash[strings.ToLower(hash)], nil
}

// Len returns the number of records in the current snapshot.
func (b *MemoryBackend) Len() int {
	return len(b.current.Load().orders)
}

var _ core.OrderStore = (*MemoryBackend)(nil)
