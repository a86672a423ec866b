// Package server exposes the order query engine and the submission stub over
// gRPC and HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erain9/meshmock/config"
	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/events"
	"github.com/erain9/meshmock/pkg/logging"
	"github.com/erain9/meshmock/pkg/messaging"
	"github.com/erain9/meshmock/pkg/otel"
	"github.com/erain9/meshmock/pkg/submit"
)

// Options tunes the QueryService boundary.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	Timeout      time.Duration
	Stats        config.StatsConfig
}

// OptionsFromConfig picks the service options out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxLimit:     cfg.Query.MaxLimit,
		Timeout:      cfg.Query.Timeout,
		Stats:        cfg.Stats,
	}
}

// QueryService is the transport independent facade used by both the gRPC
// and the HTTP surfaces.
type QueryService struct {
	engine     *core.Engine
	classifier submit.Classifier
	sender     messaging.EventSender
	hub        *events.Hub
	opts       Options
	now        func() time.Time

	queryMetrics  *otel.QueryMetrics
	submitMetrics *otel.SubmissionMetrics
}

// NewQueryService wires a QueryService. sender receives the events built for
// accepted orders and may be nil; hub serves live event subscriptions and may
// also be nil, in which case event streams end immediately.
func NewQueryService(engine *core.Engine, classifier submit.Classifier, sender messaging.EventSender, hub *events.Hub, opts Options) *QueryService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = core.DefaultLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &QueryService{
		engine:        engine,
		classifier:    classifier,
		sender:        sender,
		hub:           hub,
		opts:          opts,
		now:           time.Now,
		queryMetrics:  otel.GetQueryMetrics(),
		submitMetrics: otel.GetSubmissionMetrics(),
	}
}

// Order returns the order with the given hash, or nil if there is none.
func (s *QueryService) Order(ctx context.Context, hash string) (order *core.OrderWithMetadata, err error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanGetOrder, attribute.String(otel.AttributeOrderHash, hash))
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.Bool(otel.AttributeOrderFound, order != nil))
		s.queryMetrics.Record(ctx, otel.SpanGetOrder, time.Since(start), boolToInt(order != nil), errorKind(err))
		otel.EndSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	return s.engine.GetByHash(ctx, hash)
}

// QuerySpec resolves the defaults of an orders request: a nil sort becomes
// hash ascending, a missing limit becomes the default limit, and the limit
// is capped at the maximum.
func (s *QueryService) QuerySpec(req *api.OrdersRequest) core.QuerySpec {
	spec := core.QuerySpec{
		Filters: []core.FilterSpec{},
		Sort:    append([]core.SortSpec(nil), core.DefaultSort...),
		Limit:   s.opts.DefaultLimit,
	}
	if req == nil {
		return spec
	}
	if req.Filters != nil {
		spec.Filters = req.Filters
	}
	if req.Sort != nil {
		spec.Sort = req.Sort
	}
	if req.Limit != nil {
		spec.Limit = *req.Limit
	}
	if spec.Limit > s.opts.MaxLimit {
		spec.Limit = s.opts.MaxLimit
	}
	return spec
}

// Orders runs a list query.
func (s *QueryService) Orders(ctx context.Context, req *api.OrdersRequest) (orders []*core.OrderWithMetadata, err error) {
	spec := s.QuerySpec(req)
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanListOrders,
		attribute.Int(otel.AttributeFilterCount, len(spec.Filters)),
		attribute.Int(otel.AttributeSortCount, len(spec.Sort)),
		attribute.Int(otel.AttributeLimit, spec.Limit),
	)
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.Int(otel.AttributeResultCount, len(orders)))
		s.queryMetrics.Record(ctx, otel.SpanListOrders, time.Since(start), len(orders), errorKind(err))
		otel.EndSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	orders, err = s.engine.ListOrders(ctx, spec)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Debug().Err(err).Msg("Orders query failed")
		return nil, err
	}
	return orders, nil
}

// AddOrders classifies orders and publishes an ADDED event for each accepted
// one. A publishing failure is logged and does not change the results.
func (s *QueryService) AddOrders(ctx context.Context, orders []*core.NewOrder, pinned bool) (results *core.AddOrdersResults, err error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanAddOrders, attribute.Int(otel.AttributeSubmittedCount, len(orders)))
	defer func() { otel.EndSpan(span, err) }()

	results, err = s.classifier.AddOrders(ctx, orders, pinned)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int(otel.AttributeAcceptedCount, len(results.Accepted)),
		attribute.Int(otel.AttributeRejectedCount, len(results.Rejected)),
	)
	s.recordResults(ctx, results)
	s.publish(ctx, events.AddedEvents(results, s.now()))
	return results, nil
}

func (s *QueryService) recordResults(ctx context.Context, results *core.AddOrdersResults) {
	var fresh, known int64
	for _, a := range results.Accepted {
		if a.IsNew {
			fresh++
		} else {
			known++
		}
	}
	s.submitMetrics.RecordAccepted(ctx, true, fresh)
	s.submitMetrics.RecordAccepted(ctx, false, known)
	for _, r := range results.Rejected {
		s.submitMetrics.RecordRejected(ctx, string(r.Code))
	}
}

func (s *QueryService) publish(ctx context.Context, evs []*core.OrderEvent) {
	if s.sender == nil || len(evs) == 0 {
		return
	}
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanPublishEvents, attribute.Int(otel.AttributeEventCount, len(evs)))
	err := s.sender.SendOrderEvents(ctx, evs)
	otel.EndSpan(span, err)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Int("events", len(evs)).Msg("Failed to publish order events")
		return
	}
	s.submitMetrics.RecordPublished(ctx, int64(len(evs)))
}

// Stats reports configured node metadata together with the store's order
// counts. Every stored order counts as pinned.
func (s *QueryService) Stats(ctx context.Context) (stats *core.Stats, err error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanGetStats)
	defer func() { otel.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	orders, err := s.engine.Store().Orders(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cfg := s.opts.Stats
	return &core.Stats{
		Version:     cfg.Version,
		PubSubTopic: cfg.PubSubTopic,
		Rendezvous:  cfg.Rendezvous,
		PeerID:      cfg.PeerID,
		LatestBlock: core.LatestBlock{
			Number: cfg.LatestBlockNumber,
			Hash:   cfg.LatestBlockHash,
		},
		EthereumChainID:                   cfg.EthereumChainID,
		NumPeers:                          cfg.NumPeers,
		NumOrders:                         len(orders),
		NumOrdersIncludingRemoved:         len(orders),
		NumPinnedOrders:                   len(orders),
		MaxExpirationTime:                 cfg.MaxExpirationTime,
		StartOfCurrentUTCDay:              day.Format(time.RFC3339),
		EthRPCRequestsSentInCurrentUTCDay: cfg.EthRPCRequestsSent,
		EthRPCRateLimitExpiredRequests:    cfg.EthRPCRateLimitExpiredRequests,
	}, nil
}

// Subscribe opens a live event subscription. It returns nil when the service
// has no hub.
func (s *QueryService) Subscribe(id string) *events.Subscription {
	if s.hub == nil {
		return nil
	}
	return s.hub.Subscribe(id)
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case core.IsQueryError(err):
		return "invalid_query"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "store"
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
