package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const (
	// RequestIDKey is the key used to store request IDs in context
	RequestIDKey contextKey = "request_id"

	// RequestIDHeader carries a caller supplied request id over HTTP and gRPC.
	RequestIDHeader = "x-request-id"
)

// Config defines logging configuration
type Config struct {
	// Level is the logging level (debug, info, warn, error)
	Level string
	// Format is "json" or "pretty"
	Format string
	// Output is where logs are written (defaults to os.Stdout)
	Output io.Writer
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// Pretty reports whether logs are formatted for humans.
func (c Config) Pretty() bool {
	return strings.EqualFold(c.Format, "pretty")
}

func (c Config) level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		return zerolog.InfoLevel
	}
	return level
}

// Setup configures global logging based on the provided config
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.level())

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty() {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return log.Logger
}

// NewZapLogger builds a zap logger at the same level and format as cfg, for
// components that log through zap.
func NewZapLogger(cfg Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Pretty() {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level := zapcore.InfoLevel
	switch cfg.level() {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		level = zapcore.DebugLevel
	case zerolog.WarnLevel:
		level = zapcore.WarnLevel
	case zerolog.ErrorLevel:
		level = zapcore.ErrorLevel
	case zerolog.FatalLevel, zerolog.PanicLevel:
		level = zapcore.FatalLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// NewRequestID returns a random 16 byte hex id.
func NewRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// WithRequestID stores id in ctx for FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// FromContext extracts a logger with request context
func FromContext(ctx context.Context) zerolog.Logger {
	if requestID := RequestID(ctx); requestID != "" {
		return log.With().Str("request_id", requestID).Logger()
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 {
			return log.With().Str("request_id", ids[0]).Logger()
		}
	}

	return log.Logger
}
