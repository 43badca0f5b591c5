// Package app opens the backing stores shared by the server and the
// maintenance commands.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/edusync/platform-sync/internal/config"
	"github.com/edusync/platform-sync/internal/database"
	"github.com/edusync/platform-sync/internal/platformsync"
	"github.com/edusync/platform-sync/internal/projection/cache"
	"github.com/edusync/platform-sync/internal/projection/repository"
	"github.com/edusync/platform-sync/internal/records"
	"github.com/edusync/platform-sync/migrations"
	"github.com/edusync/platform-sync/pkg/logger"
)

// Stores holds the open connections and the stores built on them.
type Stores struct {
	Pool    *pgxpool.Pool
	Mongo   *mongo.Client
	Redis   *redis.Client // nil when Redis is not configured or unreachable
	Records *records.Store
	Docs    repository.Store
}

// Open connects to Postgres and MongoDB, applies migrations when configured
// and wraps the document store with the Redis cache when Redis answers.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{}

	pool, err := database.ConnectPostgres(ctx, cfg.Postgres.DSN, database.PostgresOptions{
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
	}, cfg.Postgres.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	s.Pool = pool

	if cfg.Postgres.MigrateOnStart {
		results, err := database.Migrate(ctx, cfg.Postgres.DSN, migrations.FS)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Infof("migrations applied: %d", len(results))
	}

	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.ConnectAttempts, func(attempt int, err error) {
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, cfg.MongoDB.ConnectAttempts, err)
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Mongo = client

	s.Records = records.New(pool)
	var docs repository.Store = repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection))

	if addr := cfg.Redis.Addr(); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v; continuing without cache", addr, err)
			_ = rc.Close()
		} else {
			s.Redis = rc
			logger.Infof("connected to Redis: %s", addr)
			if cfg.Redis.CacheTTL > 0 {
				docs = cache.NewRedisStore(docs, rc, cfg.Redis.CachePrefix, cfg.Redis.CacheTTL)
			}
		}
	}
	s.Docs = docs
	return s, nil
}

// Orchestrator builds the sync engine over the open stores.
func (s *Stores) Orchestrator(cfg *config.Config) *platformsync.Orchestrator {
	return platformsync.NewOrchestrator(s.Records, s.Docs, platformsync.WithTimeout(cfg.Sync.Timeout))
}

// Ping reports the reachability of each configured dependency.
func (s *Stores) Ping(ctx context.Context) map[string]bool {
	deps := map[string]bool{
		"postgres": s.Pool != nil && s.Pool.Ping(ctx) == nil,
		"mongodb":  s.Mongo != nil && s.Mongo.Ping(ctx, nil) == nil,
	}
	if s.Redis != nil {
		deps["redis"] = s.Redis.Ping(ctx).Err() == nil
	}
	return deps
}

// Close releases every open connection.
func (s *Stores) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Mongo != nil {
		_ = s.Mongo.Disconnect(context.Background())
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
