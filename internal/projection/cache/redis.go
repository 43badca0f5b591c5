package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/edusync/platform-sync/internal/projection"
	"github.com/edusync/platform-sync/internal/projection/repository"
	"github.com/edusync/platform-sync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStore decorates a document store with a Redis read cache.
// Documents are stored as JSON under key "<prefix><id>" with the configured TTL.
// Writes go to the backing store first; the cache entry is then refreshed
// (upsert) or dropped (delete), so a cache failure never hides a store write.
//
// Every write also bumps a per-document generation key. A read-through fill
// WATCHes that key from before the backing read until the SET, so a fill
// racing a write is discarded instead of caching a superseded document.
type RedisStore struct {
	next   repository.Store
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps next. Prefix may be empty; ttl <= 0 means no expiry.
func NewRedisStore(next repository.Store, client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "platformdoc:"
	}
	return &RedisStore{next: next, client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) genKey(id string) string {
	return r.prefix + "gen:" + id
}

// genTTL keeps the generation key alive at least as long as any fill can run.
func (r *RedisStore) genTTL() time.Duration {
	if r.ttl <= 0 {
		return time.Hour
	}
	return r.ttl + time.Minute
}

// bump advances the generation of id and applies the cache change in one transaction.
func (r *RedisStore) bump(ctx context.Context, id string, apply func(p redis.Pipeliner)) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, r.genKey(id))
		p.Expire(ctx, r.genKey(id), r.genTTL())
		apply(p)
		return nil
	})
	return err
}

func (r *RedisStore) Upsert(ctx context.Context, doc *projection.PlatformDocument) error {
	if err := r.next.Upsert(ctx, doc); err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	err = r.bump(ctx, doc.ID, func(p redis.Pipeliner) {
		p.Set(ctx, r.key(doc.ID), b, r.ttl)
	})
	if err != nil {
		// a stale entry is worse than a missing one
		logger.Warnf("cache: refresh platform document %s failed: %v", doc.ID, err)
		_ = r.client.Del(ctx, r.key(doc.ID)).Err()
	}
	return nil
}

func (r *RedisStore) DeleteByID(ctx context.Context, id string) error {
	if err := r.next.DeleteByID(ctx, id); err != nil {
		return err
	}
	err := r.bump(ctx, id, func(p redis.Pipeliner) {
		p.Del(ctx, r.key(id))
	})
	if err != nil {
		logger.Warnf("cache: evict platform document %s failed: %v", id, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*projection.PlatformDocument, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == nil {
		var d projection.PlatformDocument
		if jerr := json.Unmarshal(b, &d); jerr == nil {
			return &d, nil
		}
		_ = r.client.Del(ctx, r.key(id)).Err()
	} else if !errors.Is(err, redis.Nil) {
		logger.Warnf("cache: read platform document %s failed: %v", id, err)
		return r.next.Get(ctx, id)
	}
	return r.fill(ctx, id)
}

// fill reads id from the backing store and caches it unless a write to id
// happened meanwhile.
func (r *RedisStore) fill(ctx context.Context, id string) (*projection.PlatformDocument, error) {
	var (
		doc     *projection.PlatformDocument
		readErr error
	)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		doc, readErr = r.next.Get(ctx, id)
		if readErr != nil {
			return nil
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, r.key(id), b, r.ttl)
			return nil
		})
		return err
	}, r.genKey(id))

	switch {
	case readErr != nil:
		return nil, readErr
	case doc == nil:
		// WATCH itself failed before the backing read
		logger.Warnf("cache: fill platform document %s failed: %v", id, err)
		return r.next.Get(ctx, id)
	case errors.Is(err, redis.TxFailedErr):
		logger.Debugf("cache: platform document %s changed during fill; not cached", id)
	case err != nil:
		logger.Warnf("cache: fill platform document %s failed: %v", id, err)
	}
	return doc, nil
}

// ListIDs always reads the backing store.
func (r *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	return r.next.ListIDs(ctx)
}
