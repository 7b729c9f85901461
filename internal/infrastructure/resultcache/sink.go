// Package resultcache mirrors the latest result set into a Redis set.
package resultcache

import (
	"context"
	"errors"
	"strings"
	"time"

	"balscan/internal/domain"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "balscan:results"

type Config struct {
	Addr string
	Key  string
}

// Sink replaces the Redis set at Key with each emitted result set. Readers see either the old
// or the new set because the replacement runs in one MULTI/EXEC.
type Sink struct {
	client *redis.Client
	key    string
}

func NewSink(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
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
	return &Sink{client: client, key: cfg.Key}, nil
}

func (s *Sink) Emit(ctx context.Context, results domain.ResultSet) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	members := members(results)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(members) > 0 {
			pipe.SAdd(ctx, s.key, members...)
		}
		pipe.Incr(ctx, versionKey(s.key))
		pipe.Set(ctx, updatedKey(s.key), time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	return err
}

// Members reads the mirrored set back.
func (s *Sink) Members(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.key).Result()
}

func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Sink) Close() error {
	return s.client.Close()
}

func members(results domain.ResultSet) []any {
	sorted := results.Sorted()
	out := make([]any, len(sorted))
	for i, addr := range sorted {
		out[i] = string(addr)
	}
	return out
}

func versionKey(key string) string {
	return key + ":version"
}

func updatedKey(key string) string {
	return key + ":updated_at"
}
