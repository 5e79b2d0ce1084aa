package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stackseek/stackseek/pkg/logger"
	"github.com/stackseek/stackseek/pkg/metrics"
	"github.com/stackseek/stackseek/pkg/redis"
)

const cacheKeyPrefix = "search:"

// queryCache memoizes full search responses in Redis, with singleflight
// collapsing concurrent identical queries into one computation. Keys
// include the snapshot generation so a new index build naturally misses.
type queryCache struct {
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
}

func newQueryCache(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *queryCache {
	if client == nil {
		return nil
	}
	return &queryCache{client: client, ttl: ttl, metrics: m}
}

func cacheKey(req Request, generation uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%t|%d",
		req.Query, req.Tag, req.Limit, req.Synthesize, generation)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:16])
}

// do runs compute through the cache. A nil cache degrades to calling
// compute directly.
func (c *queryCache) do(ctx context.Context, key string, compute func() (*Result, error)) (*Result, error) {
	if c == nil {
		return compute()
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if cached, err := c.client.Get(ctx, key); err == nil {
			var res Result
			if err := json.Unmarshal([]byte(cached), &res); err == nil {
				c.metrics.CacheHitsTotal.Inc()
				res.Cached = true
				return &res, nil
			}
		} else if !redis.IsNilError(err) {
			logger.FromContext(ctx).Warn("query cache read failed", "error", err)
		}
		c.metrics.CacheMissesTotal.Inc()

		res, err := compute()
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(res); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
				logger.FromContext(ctx).Warn("query cache write failed", "error", err)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// invalidate drops every cached response, called after a reindex.
func (c *queryCache) invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		logger.FromContext(ctx).Warn("query cache invalidation failed", "error", err)
		return
	}
	logger.FromContext(ctx).Info("query cache invalidated", "keys", deleted)
}
