package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisSnapshotCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisSnapshotCache) Get(ctx context.Context, userID string, kind domain.CollectionKind) (*domain.RemoteSnapshot, error) {
	data, err := r.client.Get(ctx, cacheKey(userID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snap domain.RemoteSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot failed: %w", err)
	}
	snap.Kind = kind

	return &snap, nil
}

func (r *RedisSnapshotCache) Set(ctx context.Context, snap *domain.RemoteSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}

	// jitter spreads expiry so hot users don't miss together
	jitter := time.Duration(rand.IntN(5)) * time.Minute
	if err := r.client.Set(ctx, cacheKey(snap.UserID, snap.Kind), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSnapshotCache) Delete(ctx context.Context, userID string, kind domain.CollectionKind) error {
	if err := r.client.Del(ctx, cacheKey(userID, kind)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID string, kind domain.CollectionKind) string {
	return fmt.Sprintf("%s:%s", kind, userID)
}
