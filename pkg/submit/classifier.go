// Package submit classifies orders submitted to the node.
package submit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/erain9/meshmock/pkg/core"
)

// Classifier decides which submitted orders are accepted. Pinned is passed
// through from the caller and may be ignored.
type Classifier interface {
	AddOrders(ctx context.Context, orders []*core.NewOrder, pinned bool) (*core.AddOrdersResults, error)
}

// StubClassifier accepts any order whose amounts are positive and whose hash
// can be computed. It never checks signatures, balances, allowances or fill
// state, and it never writes to the store.
type StubClassifier struct {
	store  core.OrderStore
	logger zerolog.Logger
}

// NewStubClassifier creates a StubClassifier that reports isNew against store.
func NewStubClassifier(store core.OrderStore, logger zerolog.Logger) *StubClassifier {
	return &StubClassifier{
		store:  store,
		logger: logger.With().Str("component", "classifier").Logger(),
	}
}

// AddOrders classifies each order independently. Results keep input order
// within the accepted and rejected lists. An order repeated within one call is
// new at most once.
func (c *StubClassifier) AddOrders(ctx context.Context, orders []*core.NewOrder, pinned bool) (*core.AddOrdersResults, error) {
	results := &core.AddOrdersResults{
		Accepted: []*core.AcceptedOrderResult{},
		Rejected: []*core.RejectedOrderResult{},
	}
	seen := make(map[string]struct{}, len(orders))

	for i, order := range orders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		accepted, rejected := c.classify(ctx, order, seen)
		if rejected != nil {
			c.logger.Debug().
				Int("index", i).
				Str("code", string(rejected.Code)).
				Str("reason", rejected.Message).
				Msg("Order rejected")
			results.Rejected = append(results.Rejected, rejected)
			continue
		}
		results.Accepted = append(results.Accepted, accepted)
	}

	c.logger.Info().
		Int("submitted", len(orders)).
		Int("accepted", len(results.Accepted)).
		Int("rejected", len(results.Rejected)).
		Bool("pinned", pinned).
		Msg("Orders classified")
	return results, nil
}

func (c *StubClassifier) classify(ctx context.Context, order *core.NewOrder, seen map[string]struct{}) (*core.AcceptedOrderResult, *core.RejectedOrderResult) {
	if order == nil {
		return nil, reject(nil, nil, core.RejectedInvalidOrderEncoding, "order is empty")
	}
	if !isPositive(order.MakerAssetAmount) {
		return nil, reject(order, nil, core.RejectedInvalidMakerAssetAmount,
			fmt.Sprintf("makerAssetAmount %q must be a positive integer", order.MakerAssetAmount))
	}
	if !isPositive(order.TakerAssetAmount) {
		return nil, reject(order, nil, core.RejectedInvalidTakerAssetAmount,
			fmt.Sprintf("takerAssetAmount %q must be a positive integer", order.TakerAssetAmount))
	}

	materialized, err := order.WithMetadata()
	if err != nil {
		return nil, reject(order, nil, core.RejectedInvalidOrderEncoding, err.Error())
	}
	hash := materialized.Hash

	existing, err := c.store.OrderByHash(ctx, hash)
	if err != nil {
		c.logger.Warn().Err(err).Str("hash", hash).Msg("Order lookup failed")
		return nil, reject(order, &hash, core.RejectedEthRPCRequestFailed, "could not check order state")
	}

	key := strings.ToLower(hash)
	_, repeated := seen[key]
	seen[key] = struct{}{}

	return &core.AcceptedOrderResult{
		Order: materialized,
		IsNew: existing == nil && !repeated,
	}, nil
}

func reject(order *core.NewOrder, hash *string, code core.RejectedOrderCode, msg string) *core.RejectedOrderResult {
	return &core.RejectedOrderResult{
		Hash:    hash,
		Order:   order,
		Code:    code,
		Message: msg,
	}
}

func isPositive(amount string) bool {
	n, ok := core.ParseAmount(amount)
	return ok && n.Sign() > 0
}

var _ Classifier = (*StubClassifier)(nil)
