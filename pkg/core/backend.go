package core

import "context"

// OrderStore is the source of order records for the query engine. Records
// returned by a store are shared and must not be modified by callers.
type OrderStore interface {
	// Orders returns every record in the store's own iteration order.
	Orders(ctx context.Context) ([]*OrderWithMetadata, error)

	// OrderByHash returns the record whose hash equals hash, or nil when the
	// store holds no such record.
	OrderByHash(ctx context.Context, hash string) (*OrderWithMetadata, error)
}
