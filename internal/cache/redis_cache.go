package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/LightDreamhs/MyPetShop3.0/internal/cart"
)

const (
	cartKeyPrefix   = "console:cart:"
	submitKeyPrefix = "console:submit:"
)

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartStore stores carts as JSON; every Put refreshes the TTL.
func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func (s *RedisCartStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisCartStore) Get(ctx context.Context, operator string) (cart.Cart, error) {
	var c cart.Cart
	val, err := s.client.Get(ctx, cartKeyPrefix+operator).Bytes()
	if errors.Is(err, redis.Nil) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(val, &c); err != nil {
		return cart.Cart{}, err
	}
	return c, nil
}

func (s *RedisCartStore) Put(ctx context.Context, operator string, c cart.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cartKeyPrefix+operator, payload, s.ttl).Err()
}

func (s *RedisCartStore) Delete(ctx context.Context, operator string) error {
	return s.client.Del(ctx, cartKeyPrefix+operator).Err()
}

type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	ok, err := g.client.SetNX(ctx, submitKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateSubmission
	}
	return nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return g.client.Del(ctx, submitKeyPrefix+key).Err()
}
