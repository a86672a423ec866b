package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/erain9/meshmock/pkg/core"
)

// Client is a typed OrderQueryService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection to an OrderQueryService server.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req interface{}, opts ...grpc.CallOption) (*Resp, error) {
	in, err := ToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := FromStruct(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Order returns the order with the given hash, or nil if there is none.
func (c *Client) Order(ctx context.Context, hash string, opts ...grpc.CallOption) (*core.OrderWithMetadata, error) {
	resp, err := invoke[OrderResponse](ctx, c.cc, OrderFullMethod, &OrderRequest{Hash: hash}, opts...)
	if err != nil {
		return nil, err
	}
	return resp.Order, nil
}

// Orders runs a list query.
func (c *Client) Orders(ctx context.Context, req *OrdersRequest, opts ...grpc.CallOption) ([]*core.OrderWithMetadata, error) {
	if req == nil {
		req = &OrdersRequest{}
	}
	resp, err := invoke[OrdersResponse](ctx, c.cc, OrdersFullMethod, req, opts...)
	if err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// AddOrders submits orders for classification.
func (c *Client) AddOrders(ctx context.Context, orders []*core.NewOrder, pinned bool, opts ...grpc.CallOption) (*core.AddOrdersResults, error) {
	return invoke[core.AddOrdersResults](ctx, c.cc, AddOrdersFullMethod, &AddOrdersRequest{Orders: orders, Pinned: &pinned}, opts...)
}

// Stats returns node statistics.
func (c *Client) Stats(ctx context.Context, opts ...grpc.CallOption) (*core.Stats, error) {
	return invoke[core.Stats](ctx, c.cc, StatsFullMethod, &StatsRequest{}, opts...)
}

// EventStream receives order events until the server ends the stream or the
// context is cancelled.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event.
func (s *EventStream) Recv() (*core.OrderEvent, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	ev := new(core.OrderEvent)
	if err := FromStruct(msg, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// OrderEvents subscribes to order events.
func (c *Client) OrderEvents(ctx context.Context, opts ...grpc.CallOption) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], OrderEventsFullMethod, opts...)
	if err != nil {
		return nil, err
	}
	in, err := ToStruct(&OrderEventsRequest{})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}
