package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/copilot-auth/internal/models"
)

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется DefaultPrefix.
func NewRedis(ctx context.Context, redisURL, prefix string) (ProviderTokenCache, error) {
	const op = "cache.NewRedis"

	if prefix == "" {
		prefix = DefaultPrefix
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(id uuid.UUID) string { return c.prefix + id.String() }

// Put хранит токены JSON-строкой {"accessToken","refreshToken"} с EX=ttl.
func (c *redisCache) Put(ctx context.Context, userID uuid.UUID, tokens models.ProviderTokens, ttl time.Duration) error {
	const op = "cache.redis.Put"

	if ttl <= 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidTTL)
	}

	b, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.rdb.Set(ctx, c.key(userID), b, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *redisCache) Get(ctx context.Context, userID uuid.UUID) (models.ProviderTokens, error) {
	const op = "cache.redis.Get"

	var tokens models.ProviderTokens

	b, err := c.rdb.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return tokens, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return tokens, fmt.Errorf("%s: %w", op, err)
	}

	if err := json.Unmarshal(b, &tokens); err != nil {
		return tokens, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

func (c *redisCache) Close() error { return c.rdb.Close() }
