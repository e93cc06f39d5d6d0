package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"majorcompass/internal/model"
)

// SnapshotCache stores resume snapshots. It satisfies survey.SnapshotStore.
type SnapshotCache interface {
	Save(ctx context.Context, snap *model.Snapshot) error
	Load(ctx context.Context, sessionID string) (*model.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

type snapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache(client *redis.Client, ttl time.Duration) SnapshotCache {
	return &snapshotCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *snapshotCache) key(sessionID string) string {
	return fmt.Sprintf("snapshot:%s", sessionID)
}

func (c *snapshotCache) Save(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(snap.SessionID), data, c.ttl).Err()
}

func (c *snapshotCache) Load(ctx context.Context, sessionID string) (*model.Snapshot, error) {
	data, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCorruptSnapshot, err)
	}
	if snap.SessionID == "" {
		snap.SessionID = sessionID
	}
	return &snap, nil
}

func (c *snapshotCache) Delete(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, c.key(sessionID)).Err()
}
