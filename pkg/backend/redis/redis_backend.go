package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erain9/meshmock/pkg/core"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var defaultOptions = &RedisOptions{
	Addr:     "localhost:6379",
	Password: "",
	DB:       0,
}

// SetDefaultRedisOptions sets the default options for Redis connections
func SetDefaultRedisOptions(options *RedisOptions) {
	defaultOptions = options
}

// GetRedisClient creates a new Redis client using the default options
func GetRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     defaultOptions.Addr,
		Password: defaultOptions.Password,
		DB:       defaultOptions.DB,
	})
}

// RedisBackend implements core.OrderStore on top of Redis. Records live in a
// hash keyed by lowercase order hash; a list keeps their serving order. Both
// are written in one MULTI block and read in another, so readers always see a
// whole seed.
type RedisBackend struct {
	client    *redis.Client
	ordersKey string
	indexKey  string
	logger    *zap.Logger
}

// NewRedisBackend creates a new instance of RedisBackend
func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) *RedisBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.TrimSuffix(prefix, ":")
	return &RedisBackend{
		client:    client,
		ordersKey: fmt.Sprintf("%s:orders", prefix),
		indexKey:  fmt.Sprintf("%s:orders:index", prefix),
		logger:    logger,
	}
}

// Seed replaces the stored records with orders, keeping their order.
func (b *RedisBackend) Seed(ctx context.Context, orders []*core.OrderWithMetadata) error {
	fields := make([]interface{}, 0, 2*len(orders))
	index := make([]interface{}, 0, len(orders))
	seen := make(map[string]struct{}, len(orders))

	for i, order := range orders {
		if order == nil {
			return fmt.Errorf("order %d is nil", i)
		}
		key := strings.ToLower(order.Hash)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate order hash %s", order.Hash)
		}
		seen[key] = struct{}{}

		data, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("failed to marshal order %s: %w", order.Hash, err)
		}
		fields = append(fields, key, data)
		index = append(index, key)
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.ordersKey, b.indexKey)
		if len(orders) > 0 {
			pipe.HSet(ctx, b.ordersKey, fields...)
			pipe.RPush(ctx, b.indexKey, index...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed orders: %w", err)
	}

	b.logger.Info("seeded orders", zap.Int("count", len(orders)), zap.String("key", b.ordersKey))
	return nil
}

// Orders returns every record in serving order.
func (b *RedisBackend) Orders(ctx context.Context) ([]*core.OrderWithMetadata, error) {
	var (
		indexCmd  *redis.StringSliceCmd
		recordCmd *redis.MapStringStringCmd
	)
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		indexCmd = pipe.LRange(ctx, b.indexKey, 0, -1)
		recordCmd = pipe.HGetAll(ctx, b.ordersKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	records := recordCmd.Val()
	orders := make([]*core.OrderWithMetadata, 0, len(records))
	for _, hash := range indexCmd.Val() {
		data, ok := records[hash]
		if !ok {
			b.logger.Warn("index entry without record", zap.String("hash", hash))
			continue
		}
		order, err := decodeOrder([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", hash, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// OrderByHash returns the record with the given hash, or nil.
func (b *RedisBackend) OrderByHash(ctx context.Context, hash string) (*core.OrderWithMetadata, error) {
	data, err := b.client.HGet(ctx, b.ordersKey, strings.ToLower(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		b.logger.Error("failed to get order", zap.String("hash", hash), zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return decodeOrder(data)
}

// Len returns the number of stored records.
func (b *RedisBackend) Len(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, b.indexKey).Result()
}

// Clear removes every record written by this backend.
func (b *RedisBackend) Clear(ctx context.Context) error {
	return b.client.Del(ctx, b.ordersKey, b.indexKey).Err()
}

func decodeOrder(data []byte) (*core.OrderWithMetadata, error) {
	var order core.OrderWithMetadata
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &order, nil
}

var _ core.OrderStore = (*RedisBackend)(nil)
