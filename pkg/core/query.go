package core

import (
	"context"
	"fmt"
	"sort"
)

// DefaultLimit is the number of orders returned when a caller gives no limit.
const DefaultLimit = 20

// QuerySpec describes a list query. Filters are AND-ed; Sort is in priority
// order. A nil Sort is left to the caller: the engine itself treats nil and
// empty alike and keeps store order.
type QuerySpec struct {
	Filters []FilterSpec `json:"filters"`
	Sort    []SortSpec   `json:"sort"`
	Limit   int          `json:"limit"`
}

// DefaultQuery returns the query used for an orders request with no arguments.
func DefaultQuery() QuerySpec {
	return QuerySpec{
		Filters: []FilterSpec{},
		Sort:    append([]SortSpec(nil), DefaultSort...),
		Limit:   DefaultLimit,
	}
}

// Engine answers order queries against a store. It holds no other state, so
// one Engine may serve any number of concurrent callers.
type Engine struct {
	store OrderStore
}

// NewEngine creates an Engine reading from store.
func NewEngine(store OrderStore) *Engine {
	return &Engine{store: store}
}

// Store returns the store the engine reads from.
func (e *Engine) Store() OrderStore {
	return e.store
}

// GetByHash returns the order with the given hash. A missing order is not an
// error: the result is nil.
func (e *Engine) GetByHash(ctx context.Context, hash string) (*OrderWithMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	order, err := e.store.OrderByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup order %s: %w", hash, err)
	}
	return order, nil
}

// ListOrders filters the store, sorts the survivors and returns at most
// spec.Limit of them. Orders that compare equal keep their store order.
func (e *Engine) ListOrders(ctx context.Context, spec QuerySpec) ([]*OrderWithMetadata, error) {
	match, err := CompileFilters(spec.Filters)
	if err != nil {
		return nil, err
	}
	cmp, err := CompileSorts(spec.Sort)
	if err != nil {
		return nil, err
	}
	if spec.Limit <= 0 {
		return []*OrderWithMetadata{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := e.store.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	result := make([]*OrderWithMetadata, 0, len(all))
	for _, o := range all {
		if match(o) {
			result = append(result, o)
		}
	}
	if len(spec.Sort) > 0 {
		sort.SliceStable(result, func(i, j int) bool {
			return cmp(result[i], result[j]) < 0
		})
	}
	if len(result) > spec.Limit {
		result = result[:spec.Limit]
	}
	return result, nil
}
