package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// requestContext attaches the caller's request id, or a fresh one, to ctx and
// to a logger for method.
func requestContext(ctx context.Context, method string) (context.Context, zerolog.Logger) {
	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 {
			requestID = ids[0]
		}
	}
	if requestID == "" {
		requestID = NewRequestID()
	}

	logger := log.With().
		Str("grpc.method", method).
		Str("request_id", requestID).
		Logger()
	return WithRequestID(ctx, requestID), logger
}

// completion logs the end of a call at a level that matches its status.
func completion(logger zerolog.Logger, err error, start time.Time) *zerolog.Event {
	code := status.Code(err)

	var event *zerolog.Event
	switch code {
	case codes.OK:
		event = logger.Info()
	case codes.InvalidArgument, codes.NotFound, codes.Canceled:
		event = logger.Warn().Err(err)
	default:
		event = logger.Error().Err(err)
	}
	return event.
		Dur("duration", time.Since(start)).
		Str("grpc.code", code.String())
}

// UnaryServerInterceptor returns a gRPC interceptor for request logging
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		ctx, logger := requestContext(ctx, info.FullMethod)
		logger.Debug().Msg("Request received")

		resp, err := handler(ctx, req)

		completion(logger, err, start).Msg("Request completed")
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC interceptor for streaming request logging
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		ctx, logger := requestContext(stream.Context(), info.FullMethod)
		logger = logger.With().Bool("grpc.stream", true).Logger()
		logger.Debug().Msg("Stream started")

		err := handler(srv, &wrappedServerStream{ServerStream: stream, ctx: ctx})

		completion(logger, err, start).Msg("Stream completed")
		return err
	}
}

// wrappedServerStream wraps a grpc.ServerStream with a modified context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapper's modified context
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
