package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/sacola/internal/persist"
	"github.com/xenking/sacola/internal/storage/memory"
	"github.com/xenking/sacola/internal/storage/postgres"
	"github.com/xenking/sacola/internal/storage/redis"
	"github.com/xenking/sacola/pkg/health"
)

// openStorage returns the cart storage for cfg.Backend and a func releasing
// its resources. Network backends get a readiness check.
func openStorage(ctx context.Context, cfg StorageConfig, pool *pgxpool.Pool, hc *health.Health) (persist.Storage, func(), error) {
	switch cfg.Backend {
	case BackendMemory:
		return memory.New(), func() {}, nil
	case BackendPostgres:
		if pool == nil {
			return nil, nil, errors.New("postgres storage needs a database pool")
		}
		return postgres.NewKV(pool), func() {}, nil
	case BackendRedis:
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse redis url")
		}
		client := goredis.NewClient(opts)
		store := redis.New(client, cfg.TTL)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrap(err, "connect redis")
		}
		hc.Add(health.Readiness, "redis", 2*time.Second, health.PingCheck(store))
		return store, func() { _ = client.Close() }, nil
	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
