package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory builds the idempotency store selected by config
type IdempotencyStoreFactory struct {
	idempotency           config.IdempotencyConfig
	redis                 config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory store. Enabled by default.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(idem config.IdempotencyConfig, rcfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		idempotency:           idem,
		redis:                 rcfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns the redis store when Backend is "redis" and Redis
// answers a ping, otherwise the in-memory store
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if !strings.EqualFold(f.idempotency.Backend, "redis") {
		f.logger.Info("Using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(0), nil
	}

	store, err := f.createRedisStore(ctx)
	if err == nil {
		f.logger.Info("Using Redis idempotency store", zap.String("addr", f.redis.Addr()))
		return store, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis idempotency store unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.String("addr", f.redis.Addr()),
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(0), nil
}

func (f *IdempotencyStoreFactory) createRedisStore(ctx context.Context) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redis.Addr(),
		Password: f.redis.Password,
		DB:       f.redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisIdempotencyStore(client, f.idempotency.KeyPrefix), nil
}
