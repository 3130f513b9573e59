package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/payauth/internal/configuration"
	"github.com/redis/go-redis/v9"
)

const configKeyPrefix = "payauth:config:"

// ConfigCache shares fetched merchant configurations between bridge instances.
type ConfigCache struct {
	client *redis.Client
}

func NewConfigCache(client *redis.Client) *ConfigCache {
	return &ConfigCache{client: client}
}

// Get returns (nil, nil) on a miss.
func (c *ConfigCache) Get(ctx context.Context, key string) (*configuration.Configuration, error) {
	raw, err := c.client.Get(ctx, configKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached configuration: %w", err)
	}

	var cfg configuration.Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode cached configuration: %w", err)
	}
	return &cfg, nil
}

func (c *ConfigCache) Set(ctx context.Context, key string, cfg *configuration.Configuration, ttl time.Duration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := c.client.Set(ctx, configKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache configuration: %w", err)
	}
	return nil
}
