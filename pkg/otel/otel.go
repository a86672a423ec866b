package otel

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceQuery  = "order-query-service"
	ServiceSubmit = "order-submit-service"

	instrumentationName = "github.com/erain9/meshmock/pkg/otel"
)

var (
	mu            sync.RWMutex
	queryTracer   trace.Tracer
	submitTracer  trace.Tracer
	meterProvider *sdkmetric.MeterProvider
)

// Config holds the OpenTelemetry configuration
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Endpoint         string
	ConnectTimeout   time.Duration
	MetricInterval   time.Duration
	CollectorEnabled bool
}

// Init wires OTLP trace and metric exporters when a collector is enabled.
// Without one, spans and metrics go to the global no-op providers. The
// returned function flushes and shuts everything down.
func Init(cfg Config) (func(), error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = ServiceQuery
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "0.1.0"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.MetricInterval == 0 {
		cfg.MetricInterval = 5 * time.Second
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if !cfg.CollectorEnabled {
		setTracers(otel.GetTracerProvider())
		return func() {}, nil
	}

	var cleanup []func(context.Context) error
	resource := initResource(cfg.ServiceName, cfg.ServiceVersion)

	tp, err := initTracerProvider(cfg, resource)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer provider, continuing without traces")
	} else {
		otel.SetTracerProvider(tp)
		cleanup = append(cleanup, tp.Shutdown)
	}

	mp, err := initMeterProvider(cfg, resource)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize meter provider, continuing without metrics")
	} else {
		otel.SetMeterProvider(mp)
		cleanup = append(cleanup, mp.Shutdown)
	}

	mu.Lock()
	meterProvider = mp
	mu.Unlock()
	setTracers(otel.GetTracerProvider())

	return func() {
		for _, fn := range cleanup {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Msg("Error shutting down telemetry provider")
			}
			cancel()
		}
	}, nil
}

func setTracers(tp trace.TracerProvider) {
	mu.Lock()
	defer mu.Unlock()
	queryTracer = tp.Tracer(ServiceQuery)
	submitTracer = tp.Tracer(ServiceSubmit)
}

func initResource(serviceName, serviceVersion string) *sdkresource.Resource {
	extraResources, err := sdkresource.New(
		context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithHost(),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create resource")
		return sdkresource.Default()
	}

	resource, err := sdkresource.Merge(sdkresource.Default(), extraResources)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to merge resources")
		return sdkresource.Default()
	}
	return resource
}

func initTracerProvider(cfg Config, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))),
	), nil
}

func initMeterProvider(cfg Config, resource *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(resource),
	), nil
}

// GetQueryTracer returns the tracer for read operations
func GetQueryTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if queryTracer == nil {
		return otel.Tracer(ServiceQuery)
	}
	return queryTracer
}

// GetSubmitTracer returns the tracer for order submission
func GetSubmitTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if submitTracer == nil {
		return otel.Tracer(ServiceSubmit)
	}
	return submitTracer
}

// GetMeterProvider returns the SDK meter provider when one was installed and
// the global provider otherwise.
func GetMeterProvider() metric.MeterProvider {
	mu.RLock()
	defer mu.RUnlock()
	if meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return meterProvider
}

// InitForTesting routes every span to tp.
func InitForTesting(tp trace.TracerProvider) {
	setTracers(tp)
}

// ResetForTesting drops tracers installed by Init or InitForTesting.
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	queryTracer, submitTracer = nil, nil
	meterProvider = nil
}
