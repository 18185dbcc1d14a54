package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"codebattle-server/domain"
)

const (
	DefaultCacheTTL = 24 * time.Hour
	keyPrefix       = "codebattle:problem:"
)

// Cache serves problems from Redis and falls through to the wrapped provider
// on a miss. Redis failures are treated as misses.
type Cache struct {
	rdb  *redis.Client
	next domain.ProblemProvider
	ttl  time.Duration
}

func NewCache(rdb *redis.Client, next domain.ProblemProvider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl}
}

func (c *Cache) FetchProblem(ctx context.Context, slug string) (*domain.Problem, error) {
	key := keyPrefix + slug

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Problem
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		slog.Warn("corrupt cached problem", "slug", slug)
	case !errors.Is(err, redis.Nil):
		slog.Warn("problem cache unavailable", "slug", slug, "error", err)
	}

	p, err := c.next.FetchProblem(ctx, slug)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("problem not cached", "slug", slug, "error", err)
		}
	}
	return p, nil
}
