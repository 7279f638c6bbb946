package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

// SummaryCache хранит сводки пользователей для отображения обменов.
// Отсутствие записи не является ошибкой.
type SummaryCache interface {
	GetUserSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error)
	SetUserSummaries(ctx context.Context, summaries []*models.UserSummary) error
	InvalidateUser(ctx context.Context, id uuid.UUID) error
}

// RedisCache реализует SummaryCache поверх Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SummaryCache = (*RedisCache)(nil)

// NewRedisCache создает кэш с заданным временем жизни записей
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client, ttl: ttl}
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func userKey(id uuid.UUID) string {
	return fmt.Sprintf("user_summary:%s", id)
}

func (r *RedisCache) GetUserSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error) {
	result := make(map[uuid.UUID]*models.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // промах
		}
		var summary models.UserSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			continue // испорченная запись будет перезаписана
		}
		result[ids[i]] = &summary
	}
	return result, nil
}

func (r *RedisCache) SetUserSummaries(ctx context.Context, summaries []*models.UserSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, s := range summaries {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("ошибка сериализации сводки пользователя: %w", err)
		}
		pipe.Set(ctx, userKey(s.ID), data, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) InvalidateUser(ctx context.Context, id uuid.UUID) error {
	err := r.client.Del(ctx, userKey(id)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Noop – кэш, который ничего не хранит. Используется, когда Redis не настроен.
type Noop struct{}

var _ SummaryCache = Noop{}

func (Noop) GetUserSummaries(context.Context, []uuid.UUID) (map[uuid.UUID]*models.UserSummary, error) {
	return map[uuid.UUID]*models.UserSummary{}, nil
}

func (Noop) SetUserSummaries(context.Context, []*models.UserSummary) error { return nil }

func (Noop) InvalidateUser(context.Context, uuid.UUID) error { return nil }
