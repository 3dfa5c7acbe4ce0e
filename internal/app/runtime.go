package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling-core/internal/clinic"
	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/db"
	"github.com/hackgods/clinic-scheduling-core/internal/numbering"
	redisclient "github.com/hackgods/clinic-scheduling-core/internal/redis"
)

// Runtime holds the service and the connections behind it. PgPool is nil
// with the in-memory store and Redis is nil with the in-process locker.
type Runtime struct {
	Service *clinic.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	log     zerolog.Logger
}

// Open connects the configured store and locker, builds the service and
// bootstraps the patient number pool.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{log: log}

	var repo clinic.Repository
	switch cfg.Store {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, err
		}
		rt.PgPool = pool

		if err := db.EnsureSchema(ctx, pool); err != nil {
			rt.Close()
			return nil, err
		}
		repo = clinic.NewPgRepository(pool)
		log.Info().Msg("connected to Postgres")
	default:
		repo = clinic.NewMemoryRepository()
		log.Warn().Msg("using in-memory store, data is lost on exit")
	}

	var locker redisclient.Locker
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Redis = rdb
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		log.Info().Str("addr", cfg.RedisAddr).Dur("lock_ttl", cfg.LockTTL).Msg("connected to Redis")
	} else {
		locker = redisclient.NewLocalLocker()
		log.Warn().Msg("no Redis configured, using in-process locks")
	}

	lifecycle := numbering.NewLifecycle(numbering.NewPool())
	rt.Service = clinic.NewService(repo, locker, lifecycle, cfg, log)

	if err := rt.Service.BootstrapNumbering(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("bootstrap numbering: %w", err)
	}

	return rt, nil
}

func (rt *Runtime) Close() {
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.log.Error().Err(err).Msg("error closing redis")
		}
	}
	if rt.PgPool != nil {
		rt.PgPool.Close()
	}
}
