//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package redis implements pkg/orchestrator.CachePort over
// github.com/redis/go-redis/v9, for deployments that share a decision
// cache across multiple orchestrator processes.
package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hodei/authzcore/pkg/kernel"
)

// Cache implements orchestrator.CachePort by storing JSON-encoded
// decisions under a key prefix, with TTL delegated to Redis's own
// expiry (SETEX) rather than tracked client-side.
type Cache struct {
	client *goredis.Client
	prefix string
}

// NewCache constructs a Cache over an existing Redis client. keyPrefix
// namespaces this cache's keys from any other use of the same Redis
// instance.
func NewCache(client *goredis.Client, keyPrefix string) *Cache {
	return &Cache{client: client, prefix: keyPrefix}
}

func (c *Cache) fullKey(key string) string {
	return c.prefix + key
}

// Get implements orchestrator.CachePort.
func (c *Cache) Get(ctx context.Context, key string) (kernel.Decision, bool, error) {
	raw, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == goredis.Nil {
		return kernel.Decision{}, false, nil
	}
	if err != nil {
		return kernel.Decision{}, false, err
	}
	var decision kernel.Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return kernel.Decision{}, false, err
	}
	return decision, true, nil
}

// Set implements orchestrator.CachePort.
func (c *Cache) Set(ctx context.Context, key string, decision kernel.Decision, ttl time.Duration) error {
	raw, err := json.Marshal(decision)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.fullKey(key), raw, ttl).Err()
}
