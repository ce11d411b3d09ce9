package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// RedisConfig описывает подключение к Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// RedisCache хранит заказы в Redis как JSON под ключом order:<id>.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
	}
}

func orderKey(id int64) string {
	return fmt.Sprintf("order:%d", id)
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) GetOrder(ctx context.Context, id int64) (domain.Order, bool, error) {
	data, err := c.client.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, fmt.Errorf("redis get %s: %w", orderKey(id), err)
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return domain.Order{}, false, fmt.Errorf("decode cached order %d: %w", id, err)
	}
	return order, true, nil
}

func (c *RedisCache) SetOrder(ctx context.Context, order domain.Order, ttl time.Duration) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order %d: %w", order.ID, err)
	}
	return c.client.Set(ctx, orderKey(order.ID), data, ttl).Err()
}

func (c *RedisCache) DeleteOrder(ctx context.Context, id int64) error {
	return c.client.Del(ctx, orderKey(id)).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ OrderCache = (*RedisCache)(nil)
