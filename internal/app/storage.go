package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/kv"
	"github.com/qorikusi/storefront/internal/domain/payment"
	"github.com/qorikusi/storefront/internal/domain/product"
	"github.com/qorikusi/storefront/internal/storage/memory"
	"github.com/qorikusi/storefront/internal/storage/postgres"
	"github.com/qorikusi/storefront/internal/storage/redis"
	"github.com/qorikusi/storefront/pkg/health"
)

const redisKeyPrefix = "storefront:"

// stores are the persistence backends selected by the configuration.
type stores struct {
	kv      kv.Store
	archive payment.Archive
	// cache is nil unless Redis is configured.
	cache product.Cache
	close func()
}

// openStores connects to the configured stores and registers their
// readiness checks. Redis backs the product cache whenever it is configured;
// PostgreSQL backs the receipt archive whenever it is configured.
func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health) (*stores, error) {
	s := &stores{
		kv:      memory.NewKV(),
		archive: memory.NewArchive(),
	}
	var closers []func()
	s.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Storage.RedisURL != "" {
		rdb, err := redis.Connect(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		closers = append(closers, func() {
			if err := rdb.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		})
		h.Readiness(health.Check{
			Name: "redis",
			Func: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})

		s.cache = redis.NewCache(rdb, cfg.Catalog.CacheTTL)
		if cfg.Storage.Driver == DriverRedis {
			s.kv = redis.NewKV(rdb, redisKeyPrefix, cfg.Storage.TTL)
		}
		lg.Info("Redis connected", zap.Bool("session_store", cfg.Storage.Driver == DriverRedis))
	}

	if cfg.Storage.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			s.close()
			return nil, errors.Wrap(err, "create db pool")
		}
		closers = append(closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			s.close()
			return nil, errors.Wrap(err, "run migrations")
		}
		h.Readiness(health.Check{Name: "postgres", Func: health.PingCheck(pool)})

		s.archive = postgres.NewArchive(pool)
		if cfg.Storage.Driver == DriverPostgres {
			s.kv = postgres.NewKV(pool)
		}
		lg.Info("PostgreSQL connected", zap.Bool("session_store", cfg.Storage.Driver == DriverPostgres))
	}
	return s, nil
}
