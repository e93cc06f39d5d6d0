package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"majorcompass/internal/model"
)

const dashboardKey = "stats:dashboard"

// DashboardCache holds the last computed dashboard aggregate for a short time
type DashboardCache interface {
	Get(ctx context.Context) (*model.DashboardStats, error)
	Set(ctx context.Context, stats *model.DashboardStats) error
	Invalidate(ctx context.Context) error
}

type dashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDashboardCache creates a new dashboard cache
func NewDashboardCache(client *redis.Client, ttl time.Duration) DashboardCache {
	return &dashboardCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *dashboardCache) Get(ctx context.Context) (*model.DashboardStats, error) {
	data, err := c.client.Get(ctx, dashboardKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stats model.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *dashboardCache) Set(ctx context.Context, stats *model.DashboardStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dashboardKey, data, c.ttl).Err()
}

func (c *dashboardCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, dashboardKey).Err()
}
