package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"balscan/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	cycleCacheVersionKey = "balscan:cycles:version"
	cycleCacheKeyPrefix  = "balscan:cycles:v"
	defaultCacheTTL      = time.Minute
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository serves RecentCycles from Redis. Every recorded cycle bumps a version key so
// stale listings are never read back.
type CachedRepository struct {
	*Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) RecordCycle(ctx context.Context, summary domain.CycleSummary) error {
	if err := r.Repository.RecordCycle(ctx, summary); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedRepository) RecentCycles(ctx context.Context, limit int) ([]domain.CycleSummary, error) {
	if r.cache == nil {
		return r.Repository.RecentCycles(ctx, limit)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.RecentCycles(ctx, limit)
	}
	key := cycleCacheKey(version, limit)
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var cycles []domain.CycleSummary
		if err := json.Unmarshal([]byte(cached), &cycles); err == nil {
			return cycles, nil
		}
	}

	cycles, err := r.Repository.RecentCycles(ctx, limit)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(cycles)
	if err != nil {
		return cycles, nil
	}
	_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	return cycles, nil
}

func (r *CachedRepository) Close() error {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	return r.Repository.Close()
}

func (r *CachedRepository) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, cycleCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (r *CachedRepository) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Incr(ctx, cycleCacheVersionKey).Err()
}

func cycleCacheKey(version string, limit int) string {
	return cycleCacheKeyPrefix + version + ":limit=" + strconv.Itoa(normalizeRecentLimit(limit))
}
