package orchestrator

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hodei/authzcore/pkg/kernel"
)

// InMemoryCache is a process-local, TTL-expiring CachePort implementation.
// It is the orchestrator's zero-external-dependency default.
type InMemoryCache struct {
	mu sync.Mutex
	m  map[string]cacheEntry
}

type cacheEntry struct {
	decision kernel.Decision
	expires  time.Time
}

// NewInMemoryCache constructs an empty InMemoryCache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{m: make(map[string]cacheEntry)}
}

var _ CachePort = (*InMemoryCache)(nil)

// Get implements CachePort.
func (c *InMemoryCache) Get(ctx context.Context, key string) (kernel.Decision, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.m[key]
	if !ok || time.Now().After(entry.expires) {
		return kernel.Decision{}, false, nil
	}
	return entry.decision, true, nil
}

// Set implements CachePort.
func (c *InMemoryCache) Set(ctx context.Context, key string, decision kernel.Decision, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = cacheEntry{decision: decision, expires: time.Now().Add(ttl)}
	return nil
}

// NoopAuditLog discards every audit event. Useful for benchmarks and
// tests that don't care about the audit trail.
type NoopAuditLog struct{}

var _ AuditLogPort = NoopAuditLog{}

// Record implements AuditLogPort by discarding event.
func (NoopAuditLog) Record(ctx context.Context, event AuditEvent) error { return nil }

// AtomicMetrics is a sync/atomic-counter MetricsPort implementation.
// Prometheus client counters are not wired here: prometheus is not a
// direct dependency anywhere in the retrieved corpus for this module
// (OPA pulls in its own metrics internally, but no example repo imports
// client_golang as an application-level dependency), so this sink uses
// plain atomic counters instead of fabricating a prometheus dependency
// that nothing in the corpus actually demonstrates wiring.
type AtomicMetrics struct {
	allowed       atomic.Int64
	denied        atomic.Int64
	cacheHits     atomic.Int64
	cancellations atomic.Int64
	evalSeconds   atomic.Uint64 // math.Float64bits of the running total
}

var _ MetricsPort = (*AtomicMetrics)(nil)

// NewAtomicMetrics constructs a zeroed AtomicMetrics.
func NewAtomicMetrics() *AtomicMetrics {
	return &AtomicMetrics{}
}

// IncDecision implements MetricsPort.
func (m *AtomicMetrics) IncDecision(outcome string) {
	if outcome == "allow" {
		m.allowed.Add(1)
	} else {
		m.denied.Add(1)
	}
}

// IncCacheHit implements MetricsPort.
func (m *AtomicMetrics) IncCacheHit() { m.cacheHits.Add(1) }

// IncCancelled implements MetricsPort.
func (m *AtomicMetrics) IncCancelled() { m.cancellations.Add(1) }

// ObserveEvalDuration implements MetricsPort, accumulating a running
// sum via a compare-and-swap loop over the float's bit pattern — plain
// histogram buckets are left to an external metrics backend in
// production; this sink exposes totals only.
func (m *AtomicMetrics) ObserveEvalDuration(seconds float64) {
	for {
		old := m.evalSeconds.Load()
		next := math.Float64bits(math.Float64frombits(old) + seconds)
		if m.evalSeconds.CompareAndSwap(old, next) {
			return
		}
	}
}

// Snapshot returns the current counter values and the running sum of
// observed evaluation durations, in seconds.
func (m *AtomicMetrics) Snapshot() (allowed, denied, cacheHits, cancellations int64, evalSecondsTotal float64) {
	return m.allowed.Load(), m.denied.Load(), m.cacheHits.Load(), m.cancellations.Load(), math.Float64frombits(m.evalSeconds.Load())
}
