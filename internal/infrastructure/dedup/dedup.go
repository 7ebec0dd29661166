package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper отсекает повторные доставки вебхуков. Ключ записывается
// только после успешной обработки события: если обработка упала, повторная
// доставка провайдера пройдёт по полному пути. Потеря ключа не ломает
// корректность: обработчики событий идемпотентны, дедупликация лишь
// экономит работу.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{
		client: client,
		ttl:    ttl,
	}
}

// Seen возвращает true, если ключ уже встречался.
func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, "webhook:seen:"+key).Result()
	if err != nil {
		return false, fmt.Errorf("client.Exists: %w", err)
	}

	return n > 0, nil
}

// MarkSeen запоминает ключ обработанного события.
func (d *RedisDeduper) MarkSeen(ctx context.Context, key string) error {
	if err := d.client.Set(ctx, "webhook:seen:"+key, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("client.Set: %w", err)
	}

	return nil
}
