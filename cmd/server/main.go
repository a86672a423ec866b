package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/erain9/meshmock/config"
	"github.com/erain9/meshmock/pkg/backend/memory"
	"github.com/erain9/meshmock/pkg/backend/redis"
	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/db/queue"
	"github.com/erain9/meshmock/pkg/events"
	"github.com/erain9/meshmock/pkg/fixtures"
	"github.com/erain9/meshmock/pkg/logging"
	"github.com/erain9/meshmock/pkg/messaging"
	"github.com/erain9/meshmock/pkg/messaging/kafka"
	"github.com/erain9/meshmock/pkg/otel"
	"github.com/erain9/meshmock/pkg/server"
	"github.com/erain9/meshmock/pkg/submit"
)

// app holds everything main starts and later has to stop.
type app struct {
	service    *server.QueryService
	grpcServer *grpc.Server
	httpServer *http.Server
	hub        *events.Hub
	sender     messaging.EventSender
	closers    []func() error
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCfg := logging.Config{Level: cfg.Server.LogLevel, Format: cfg.Server.LogFormat}
	logger := logging.Setup(logCfg)

	// Initialize OpenTelemetry
	cleanup, err := otel.Init(otel.Config{
		ServiceName:      cfg.OTel.ServiceName,
		ServiceVersion:   cfg.Stats.Version,
		Endpoint:         cfg.OTel.Endpoint,
		CollectorEnabled: cfg.OTel.Enabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize OpenTelemetry")
	}
	defer cleanup()
	if cfg.OTel.Enabled {
		if err := otel.StartRuntimeMetrics(0); err != nil {
			logger.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background()))
	defer cancel()

	a, err := newApp(ctx, cfg, logCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start")
	}

	if err := a.serve(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to serve")
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
	cancel()
	a.shutdown(logger)
	logger.Info().Msg("Servers shutdown complete")
}

// newApp builds the store, the query service and the event pipeline.
func newApp(ctx context.Context, cfg *config.Config, logCfg logging.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	store, err := newStore(ctx, cfg, logCfg, a)
	if err != nil {
		a.close(logger)
		return nil, err
	}

	a.hub = events.NewHub(events.DefaultBuffer, logger)
	senders := messaging.MultiSender{a.hub}
	queueSender, err := newQueueSender(ctx, cfg, logger, a)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	if queueSender != nil {
		senders = append(senders, queueSender)
	}
	a.sender = senders

	a.service = server.NewQueryService(
		core.NewEngine(store),
		submit.NewStubClassifier(store, logger),
		a.sender,
		a.hub,
		server.OptionsFromConfig(cfg),
	)

	a.grpcServer = server.NewGRPCServer(a.service)
	// Enable reflection for tools like grpcurl
	reflection.Register(a.grpcServer)

	a.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPHandler(a.service).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config, logCfg logging.Config, a *app) (core.OrderStore, error) {
	logger := zerolog.Ctx(ctx)

	orders, err := fixtures.Load(cfg.Store.Fixtures)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	switch cfg.Store.Backend {
	case config.StoreRedis:
		zapLogger, err := logging.NewZapLogger(logCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis logger: %w", err)
		}
		a.closers = append(a.closers, func() error {
			_ = zapLogger.Sync()
			return nil
		})

		redis.SetDefaultRedisOptions(&redis.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		client := redis.GetRedisClient()
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		backend := redis.NewRedisBackend(client, cfg.Redis.Prefix, zapLogger)
		if err := backend.Seed(ctx, orders); err != nil {
			return nil, fmt.Errorf("failed to seed redis: %w", err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Str("prefix", cfg.Redis.Prefix).Int("orders", len(orders)).Msg("Seeded redis order store")
		return backend, nil

	default:
		backend, err := memory.NewMemoryBackend(orders)
		if err != nil {
			return nil, err
		}
		logger.Info().Int("orders", backend.Len()).Msg("Loaded memory order store")
		return backend, nil
	}
}

// newQueueSender connects the configured broker driver. The optional
// consumer is for developer purpose: it pretty prints every event on the
// topic.
func newQueueSender(ctx context.Context, cfg *config.Config, logger zerolog.Logger, a *app) (messaging.EventSender, error) {
	m := cfg.Messaging
	switch m.Driver {
	case config.DriverKafka:
		sender, err := kafka.NewKafkaEventSender(m.BrokerAddr, m.Topic)
		if err != nil {
			return nil, err
		}
		if m.Consume {
			startKafkaConsumer(ctx, m.BrokerAddr, m.Topic, m.GroupID, logger, a)
		}
		logger.Info().Str("broker", m.BrokerAddr).Str("topic", m.Topic).Msg("Publishing order events with kafka-go")
		return sender, nil

	case config.DriverSarama:
		brokers := strings.Split(m.BrokerAddr, ",")
		sender, err := queue.NewQueueEventSender(brokers, m.Topic)
		if err != nil {
			return nil, err
		}
		if m.Consume {
			startSaramaConsumer(brokers, m.Topic, logger, a)
		}
		logger.Info().Strs("brokers", brokers).Str("topic", m.Topic).Msg("Publishing order events with sarama")
		return sender, nil

	default:
		return nil, nil
	}
}

// setupKafkaConsumer is replaced in tests.
var setupKafkaConsumer = kafka.SetupConsumer

func startKafkaConsumer(ctx context.Context, brokerAddr, topic, groupID string, logger zerolog.Logger, a *app) {
	consumer, err := setupKafkaConsumer(ctx, brokerAddr, topic, groupID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create kafka consumer - continuing without it")
		return
	}
	a.closers = append(a.closers, consumer.Close)
}

func startSaramaConsumer(brokers []string, topic string, logger zerolog.Logger, a *app) {
	consumer, err := queue.NewQueueEventConsumer(brokers, topic)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create sarama consumer - continuing without it")
		return
	}
	a.closers = append(a.closers, consumer.Close)

	go func() {
		err := consumer.ConsumeOrderEvents(func(ev *core.OrderEvent) error {
			entry := logger.Info().Str("end_state", string(ev.EndState))
			if ev.Order != nil {
				entry = entry.Str("hash", ev.Order.Hash)
			}
			entry.Msg("Received order event")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Sarama consumer stopped")
		}
	}()
}

// serve starts the gRPC and HTTP listeners in the background.
func (a *app) serve(cfg *config.Config, logger zerolog.Logger) error {
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.GRPCAddr).Msg("Starting gRPC server")
		if err := a.grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("Failed to serve gRPC")
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Msg("Starting HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()
	return nil
}

func (a *app) shutdown(logger zerolog.Logger) {
	// Ends event streams so GracefulStop does not wait on them.
	if err := a.hub.Close(); err != nil {
		logger.Error().Err(err).Msg("Event hub shutdown error")
	}
	a.grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	a.close(logger)
}

func (a *app) close(logger zerolog.Logger) {
	if a.sender != nil {
		if err := a.sender.Close(); err != nil {
			logger.Error().Err(err).Msg("Event sender shutdown error")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Error().Err(err).Msg("Shutdown error")
		}
	}
}
