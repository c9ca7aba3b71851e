package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"bahikhata/backend/internal/domain"
)

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type RedisPartyCache struct {
	client *redis.Client
}

func NewRedisPartyCache(client *redis.Client) *RedisPartyCache {
	return &RedisPartyCache{client: client}
}

func (c *RedisPartyCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPartyCache) Get(ctx context.Context, businessID string, partyID string) (*domain.PartyView, bool, error) {
	val, err := c.client.Get(ctx, partyKey(businessID, partyID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var view domain.PartyView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		return nil, false, err
	}
	return &view, true, nil
}

func (c *RedisPartyCache) Set(ctx context.Context, businessID string, view domain.PartyView, ttl time.Duration) error {
	if view.ID == "" {
		return nil
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, partyKey(businessID, view.ID), payload, ttl).Err()
}

func (c *RedisPartyCache) Delete(ctx context.Context, businessID string, partyID string) error {
	return c.client.Del(ctx, partyKey(businessID, partyID)).Err()
}
