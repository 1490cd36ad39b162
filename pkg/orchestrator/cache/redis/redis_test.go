//
//  Copyright © Manetu Inc. All rights reserved.
//

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hodei/authzcore/pkg/kernel"
	"github.com/hodei/authzcore/pkg/orchestrator/cache/redis"
)

func newTestCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	return redis.NewCache(client, "authzcore:decisions:"), server
}

func TestGetMissReturnsFalse(t *testing.T) {
	cache, _ := newTestCache(t)

	_, found, err := cache.Get(context.Background(), "no-such-key")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	cache, _ := newTestCache(t)
	decision := kernel.Decision{Effect: kernel.EffectAllow}

	require.NoError(t, cache.Set(context.Background(), "req-1", decision, time.Minute))

	got, found, err := cache.Get(context.Background(), "req-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, decision.Effect, got.Effect)
}

func TestKeysAreNamespacedByPrefix(t *testing.T) {
	cache, server := newTestCache(t)
	require.NoError(t, cache.Set(context.Background(), "req-1", kernel.Decision{Effect: kernel.EffectDeny}, time.Minute))

	require.True(t, server.Exists("authzcore:decisions:req-1"))
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	cache, server := newTestCache(t)
	require.NoError(t, cache.Set(context.Background(), "req-1", kernel.Decision{Effect: kernel.EffectAllow}, time.Second))

	server.FastForward(2 * time.Second)

	_, found, err := cache.Get(context.Background(), "req-1")
	require.NoError(t, err)
	require.False(t, found)
}
