package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/logging"
)

// GRPCOrderQueryService implements api.OrderQueryServer on a QueryService.
type GRPCOrderQueryService struct {
	service *QueryService
}

// NewGRPCOrderQueryService creates a GRPCOrderQueryService.
func NewGRPCOrderQueryService(service *QueryService) *GRPCOrderQueryService {
	return &GRPCOrderQueryService{service: service}
}

var _ api.OrderQueryServer = (*GRPCOrderQueryService)(nil)

// Order implements the Order RPC method
func (s *GRPCOrderQueryService) Order(ctx context.Context, req *api.OrderRequest) (*api.OrderResponse, error) {
	logger := logging.FromContext(ctx).With().Str("method", "Order").Logger()
	logger.Debug().Str("hash", req.Hash).Msg("Request received")

	order, err := s.service.Order(ctx, req.Hash)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.OrderResponse{Order: order}, nil
}

// Orders implements the Orders RPC method
func (s *GRPCOrderQueryService) Orders(ctx context.Context, req *api.OrdersRequest) (*api.OrdersResponse, error) {
	logger := logging.FromContext(ctx).With().Str("method", "Orders").Logger()
	logger.Debug().Int("filters", len(req.Filters)).Bool("sort_given", req.Sort != nil).Msg("Request received")

	orders, err := s.service.Orders(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.OrdersResponse{Orders: orders}, nil
}

// AddOrders implements the AddOrders RPC method
func (s *GRPCOrderQueryService) AddOrders(ctx context.Context, req *api.AddOrdersRequest) (*core.AddOrdersResults, error) {
	logger := logging.FromContext(ctx).With().Str("method", "AddOrders").Logger()
	logger.Debug().Int("orders", len(req.Orders)).Msg("Request received")

	results, err := s.service.AddOrders(ctx, req.Orders, req.IsPinned())
	if err != nil {
		return nil, toStatus(err)
	}
	return results, nil
}

// Stats implements the Stats RPC method
func (s *GRPCOrderQueryService) Stats(ctx context.Context, _ *api.StatsRequest) (*core.Stats, error) {
	stats, err := s.service.Stats(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return stats, nil
}

// OrderEvents streams events until the client goes away or the hub closes.
func (s *GRPCOrderQueryService) OrderEvents(_ *api.OrderEventsRequest, sink api.EventSink) error {
	ctx := sink.Context()
	id := logging.RequestID(ctx)
	if id == "" {
		id = logging.NewRequestID()
	}

	sub := s.service.Subscribe(id)
	if sub == nil {
		return status.Error(codes.Unavailable, "order events are not enabled")
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return status.Error(codes.Aborted, "event subscription closed")
			}
			if err := sink.Send(ev); err != nil {
				return err
			}
		}
	}
}

// toStatus maps service errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case core.IsQueryError(err), errors.Is(err, core.ErrInvalidOrder):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}
