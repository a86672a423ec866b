package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/erain9/meshmock/pkg/core"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "meshmock.v1.OrderQueryService"

// Full method names, as seen by interceptors.
const (
	OrderFullMethod       = "/" + ServiceName + "/Order"
	OrdersFullMethod      = "/" + ServiceName + "/Orders"
	AddOrdersFullMethod   = "/" + ServiceName + "/AddOrders"
	StatsFullMethod       = "/" + ServiceName + "/Stats"
	OrderEventsFullMethod = "/" + ServiceName + "/OrderEvents"
)

// OrderQueryServer is the server API for OrderQueryService.
type OrderQueryServer interface {
	Order(context.Context, *OrderRequest) (*OrderResponse, error)
	Orders(context.Context, *OrdersRequest) (*OrdersResponse, error)
	AddOrders(context.Context, *AddOrdersRequest) (*core.AddOrdersResults, error)
	Stats(context.Context, *StatsRequest) (*core.Stats, error)
	OrderEvents(*OrderEventsRequest, EventSink) error
}

// EventSink is the server side of an OrderEvents stream.
type EventSink interface {
	Context() context.Context
	Send(*core.OrderEvent) error
}

// RegisterOrderQueryServer registers srv on s.
func RegisterOrderQueryServer(s grpc.ServiceRegistrar, srv OrderQueryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes OrderQueryService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Order",
			Handler: unaryHandler(OrderFullMethod, func(srv OrderQueryServer, ctx context.Context, req *OrderRequest) (interface{}, error) {
				return srv.Order(ctx, req)
			}),
		},
		{
			MethodName: "Orders",
			Handler: unaryHandler(OrdersFullMethod, func(srv OrderQueryServer, ctx context.Context, req *OrdersRequest) (interface{}, error) {
				return srv.Orders(ctx, req)
			}),
		},
		{
			MethodName: "AddOrders",
			Handler: unaryHandler(AddOrdersFullMethod, func(srv OrderQueryServer, ctx context.Context, req *AddOrdersRequest) (interface{}, error) {
				return srv.AddOrders(ctx, req)
			}),
		},
		{
			MethodName: "Stats",
			Handler: unaryHandler(StatsFullMethod, func(srv OrderQueryServer, ctx context.Context, req *StatsRequest) (interface{}, error) {
				return srv.Stats(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "OrderEvents",
			Handler:       orderEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "meshmock/v1/order_query.proto",
}

// unaryHandler adapts a typed method to grpc's untyped handler signature. The
// wire request is decoded inside the interceptor chain so interceptors see
// the raw Struct.
func unaryHandler[Req any](
	fullMethod string,
	call func(OrderQueryServer, context.Context, *Req) (interface{}, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, wire interface{}) (interface{}, error) {
			req := new(Req)
			if err := FromStruct(wire.(*structpb.Struct), req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			resp, err := call(srv.(OrderQueryServer), ctx, req)
			if err != nil {
				return nil, err
			}
			out, err := ToStruct(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return out, nil
		}

		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

func orderEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	req := new(OrderEventsRequest)
	if err := FromStruct(in, req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return srv.(OrderQueryServer).OrderEvents(req, &eventSink{stream})
}

type eventSink struct {
	grpc.ServerStream
}

func (s *eventSink) Send(ev *core.OrderEvent) error {
	msg, err := ToStruct(ev)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return s.ServerStream.SendMsg(msg)
}
