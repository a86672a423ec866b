package server

import (
	"google.golang.org/grpc"

	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/logging"
	"github.com/erain9/meshmock/pkg/otel"
)

// RegisterOrderQueryService registers the order query service with the provided gRPC server
func RegisterOrderQueryService(grpcServer grpc.ServiceRegistrar, service *GRPCOrderQueryService) {
	api.RegisterOrderQueryServer(grpcServer, service)
}

// NewGRPCServer creates a gRPC server with request logging and tracing, and
// registers service on it.
func NewGRPCServer(service *QueryService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otel.NewGRPCStatsHandler()),
		grpc.ChainUnaryInterceptor(logging.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(logging.StreamServerInterceptor()),
	}, opts...)

	s := grpc.NewServer(opts...)
	RegisterOrderQueryService(s, NewGRPCOrderQueryService(service))
	return s
}
