package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/authzcore/pkg/kernel"
	"github.com/hodei/authzcore/pkg/orchestrator"
)

func TestInMemoryCacheExpiresByTTL(t *testing.T) {
	cache := orchestrator.NewInMemoryCache()
	decision := kernel.Decision{Effect: kernel.EffectAllow}

	require.NoError(t, cache.Set(context.Background(), "k", decision, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, hit, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAtomicMetricsSnapshot(t *testing.T) {
	m := orchestrator.NewAtomicMetrics()
	m.IncDecision("allow")
	m.IncDecision("deny")
	m.IncDecision("deny")
	m.IncCacheHit()
	m.IncCancelled()
	m.ObserveEvalDuration(0.5)
	m.ObserveEvalDuration(0.25)

	allowed, denied, cacheHits, cancellations, total := m.Snapshot()
	assert.Equal(t, int64(1), allowed)
	assert.Equal(t, int64(2), denied)
	assert.Equal(t, int64(1), cacheHits)
	assert.Equal(t, int64(1), cancellations)
	assert.InDelta(t, 0.75, total, 0.0001)
}
