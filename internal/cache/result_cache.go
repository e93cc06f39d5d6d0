package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"majorcompass/internal/model"
)

const resultIndexKey = "results:index"

// ResultCache is the local fallback store for results. Records live under
// result:{code}; results:index lists codes newest first and is capped, and
// trimming the index leaves the records in place.
type ResultCache interface {
	Set(ctx context.Context, rec *model.ResultRecord) error
	Get(ctx context.Context, code string) (*model.ResultRecord, error)
	GetByStudentID(ctx context.Context, studentID string) (*model.ResultRecord, error)
	List(ctx context.Context, limit int) ([]*model.ResultRecord, error)
	Delete(ctx context.Context, rec *model.ResultRecord) error
	Exists(ctx context.Context, code string) (bool, error)
}

type resultCache struct {
	client   *redis.Client
	indexCap int64
}

// NewResultCache creates a new local result store
func NewResultCache(client *redis.Client, indexCap int) ResultCache {
	return &resultCache{
		client:   client,
		indexCap: int64(indexCap),
	}
}

func (c *resultCache) key(code string) string {
	return fmt.Sprintf("result:%s", code)
}

func (c *resultCache) studentKey(studentID string) string {
	return fmt.Sprintf("result:student:%s", studentID)
}

func (c *resultCache) Set(ctx context.Context, rec *model.ResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.key(rec.Code), data, 0)
		if rec.StudentID != "" {
			pipe.Set(ctx, c.studentKey(rec.StudentID), rec.Code, 0)
		}
		pipe.LRem(ctx, resultIndexKey, 0, rec.Code)
		pipe.LPush(ctx, resultIndexKey, rec.Code)
		pipe.LTrim(ctx, resultIndexKey, 0, c.indexCap-1)
		return nil
	})
	return err
}

func (c *resultCache) Get(ctx context.Context, code string) (*model.ResultRecord, error) {
	data, err := c.client.Get(ctx, c.key(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

func decodeRecord(data []byte) (*model.ResultRecord, error) {
	var rec model.ResultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	// StudentID is not serialized to JSON
	if rec.Identity != nil {
		rec.StudentID = rec.Identity.StudentID
	}
	return &rec, nil
}

func (c *resultCache) GetByStudentID(ctx context.Context, studentID string) (*model.ResultRecord, error) {
	code, err := c.client.Get(ctx, c.studentKey(studentID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, code)
}

// List returns up to limit indexed records, newest first. Codes whose record
// is gone are skipped.
func (c *resultCache) List(ctx context.Context, limit int) ([]*model.ResultRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	codes, err := c.client.LRange(ctx, resultIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = c.key(code)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*model.ResultRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *resultCache) Delete(ctx context.Context, rec *model.ResultRecord) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.key(rec.Code))
		pipe.LRem(ctx, resultIndexKey, 0, rec.Code)
		return nil
	})
	if err != nil {
		return err
	}
	if rec.StudentID == "" {
		return nil
	}
	// drop the student pointer only if it still points at this record
	current, err := c.client.Get(ctx, c.studentKey(rec.StudentID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if current == rec.Code {
		return c.client.Del(ctx, c.studentKey(rec.StudentID)).Err()
	}
	return nil
}

func (c *resultCache) Exists(ctx context.Context, code string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(code)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
