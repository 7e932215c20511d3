package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const reminderKeyPrefix = "edumate:reminders:"

// Cache stores generated reminders per user.
type Cache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]Reminder, bool, error)
	Set(ctx context.Context, userID uuid.UUID, reminders []Reminder, ttl time.Duration) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type NopCache struct{}

func (NopCache) Get(context.Context, uuid.UUID) ([]Reminder, bool, error)        { return nil, false, nil }
func (NopCache) Set(context.Context, uuid.UUID, []Reminder, time.Duration) error { return nil }
func (NopCache) Invalidate(context.Context, uuid.UUID) error                     { return nil }

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func reminderKey(userID uuid.UUID) string {
	return reminderKeyPrefix + userID.String()
}

func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) ([]Reminder, bool, error) {
	data, err := c.client.Get(ctx, reminderKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var reminders []Reminder
	if err := json.Unmarshal(data, &reminders); err != nil {
		return nil, false, fmt.Errorf("decode cached reminders: %w", err)
	}
	return reminders, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID uuid.UUID, reminders []Reminder, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(reminders)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reminderKey(userID), data, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, reminderKey(userID)).Err()
}
