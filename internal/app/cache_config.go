package app

import (
	"strings"

	"github.com/charlesng35/workpass/internal/cache"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		URL:          strings.TrimSpace(c.Redis.URL),
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
		DialTimeout:  c.Redis.DialTimeout,
		ReadTimeout:  c.Redis.ReadTimeout,
		WriteTimeout: c.Redis.WriteTimeout,
		KeyPrefix:    strings.TrimSpace(c.Redis.KeyPrefix),
	}
}
