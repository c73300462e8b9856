// backend/pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"assessment-system/internal/models"
	"assessment-system/internal/session"
)

const assessmentTTL = 24 * time.Hour

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) SetAssessment(ctx context.Context, kind string, a session.Assessment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, assessmentKey(kind, a.ID), data, assessmentTTL).Err()
}

func (c *RedisCache) GetAssessment(ctx context.Context, kind, id string) (session.Assessment, error) {
	data, err := c.client.Get(ctx, assessmentKey(kind, id)).Bytes()
	if err != nil {
		return session.Assessment{}, err
	}
	var a session.Assessment
	err = json.Unmarshal(data, &a)
	return a, err
}

func assessmentKey(kind, id string) string {
	return "assessment:" + kind + ":" + id
}

// SetLeaderboard stores a board built while the kind was at generation.
// It reports false without storing when a result has landed since.
func (c *RedisCache) SetLeaderboard(ctx context.Context, kind, subject string, generation int64, entries []models.LeaderboardEntry, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return false, err
	}
	genKey := leaderboardGenerationKey(kind)
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, leaderboardKey(kind, subject), data, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)
	if err == redis.TxFailedErr {
		return false, nil
	}
	return stored, err
}

// LeaderboardGeneration counts the invalidations of a kind's boards.
func (c *RedisCache) LeaderboardGeneration(ctx context.Context, kind string) (int64, error) {
	n, err := c.client.Get(ctx, leaderboardGenerationKey(kind)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (c *RedisCache) GetLeaderboard(ctx context.Context, kind, subject string) ([]models.LeaderboardEntry, error) {
	data, err := c.client.Get(ctx, leaderboardKey(kind, subject)).Bytes()
	if err != nil {
		return nil, err
	}
	var entries []models.LeaderboardEntry
	err = json.Unmarshal(data, &entries)
	return entries, err
}

// InvalidateLeaderboards bumps the kind's generation and removes every
// cached board of the kind, across subjects.
func (c *RedisCache) InvalidateLeaderboards(ctx context.Context, kind string) error {
	if err := c.client.Incr(ctx, leaderboardGenerationKey(kind)).Err(); err != nil {
		return err
	}
	pattern := "leaderboard:" + kind + ":*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func leaderboardKey(kind, subject string) string {
	return "leaderboard:" + kind + ":" + subject
}

func leaderboardGenerationKey(kind string) string {
	return "leaderboard-gen:" + kind
}

// RevokeToken remembers a signed-out token id until the token would have
// expired anyway.
func (c *RedisCache) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, "revoked:"+tokenID, 1, ttl).Err()
}

func (c *RedisCache) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, "revoked:"+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
