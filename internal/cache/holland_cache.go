package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"majorcompass/internal/model"
)

const (
	hollandKey = "stats:holland"
	clusterKey = "stats:clusters"
)

// HollandCache counts saved results per Holland code (ZSET) and per cluster (HASH)
type HollandCache interface {
	Record(ctx context.Context, hollandCode, cluster string) error
	GetTop(ctx context.Context, limit int) ([]model.CodeCount, error)
	ClusterCounts(ctx context.Context) (map[string]int, error)
}

type hollandCache struct {
	client *redis.Client
}

// NewHollandCache creates a new Holland code counter
func NewHollandCache(client *redis.Client) HollandCache {
	return &hollandCache{
		client: client,
	}
}

func (c *hollandCache) Record(ctx context.Context, hollandCode, cluster string) error {
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if hollandCode != "" {
			pipe.ZIncrBy(ctx, hollandKey, 1, hollandCode)
		}
		if cluster != "" {
			pipe.HIncrBy(ctx, clusterKey, cluster, 1)
		}
		return nil
	})
	return err
}

func (c *hollandCache) GetTop(ctx context.Context, limit int) ([]model.CodeCount, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := c.client.ZRevRangeWithScores(ctx, hollandKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]model.CodeCount, len(results))
	for i, z := range results {
		entries[i] = model.CodeCount{
			Code:  z.Member.(string),
			Count: int64(z.Score),
		}
	}
	return entries, nil
}

func (c *hollandCache) ClusterCounts(ctx context.Context) (map[string]int, error) {
	raw, err := c.client.HGetAll(ctx, clusterKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		var n int
		if _, err := fmt.Sscan(v, &n); err == nil {
			out[k] = n
		}
	}
	return out, nil
}
