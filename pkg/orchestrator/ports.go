//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package orchestrator composes the SCP and IAM evaluators into the
// public authorize operation, applying IAM/SCP combination semantics,
// and wires in the cross-cutting collaborators: a decision cache, an
// audit log, and a metrics sink.
package orchestrator

import (
	"context"
	"time"

	"github.com/hodei/authzcore/pkg/kernel"
)

// CachePort caches decisions keyed by a request fingerprint.
// Implementations must be safe for concurrent use.
type CachePort interface {
	Get(ctx context.Context, key string) (kernel.Decision, bool, error)
	Set(ctx context.Context, key string, decision kernel.Decision, ttl time.Duration) error
}

// AuditEvent is the audit trail envelope emitted for every decision the
// orchestrator returns, cache hits included, per spec.md §6.3. Requests
// that end in an error (evaluator failure, cancellation, an unusable
// request) emit no event.
type AuditEvent struct {
	EventID               string    `json:"event_id"`
	EventType             string    `json:"event_type"`
	Timestamp             time.Time `json:"timestamp"`
	CorrelationID         string    `json:"correlation_id,omitempty"`
	PrincipalHRN          string    `json:"principal_hrn"`
	Action                string    `json:"action"`
	ResourceHRN           string    `json:"resource_hrn"`
	Decision              string    `json:"decision"`
	Explicit              bool      `json:"explicit"`
	DeterminingPolicyIDs  []string  `json:"determining_policy_ids"`
	Reason                string    `json:"reason"`
	DurationMs            int64     `json:"duration_ms"`
}

// AuditLogPort records audit events. Per spec.md §6.3, delivery is
// best-effort: a Record failure must never fail the authorize call
// that produced the event, only be logged.
type AuditLogPort interface {
	Record(ctx context.Context, event AuditEvent) error
}

// MetricsPort accumulates operational counters and timing observations.
type MetricsPort interface {
	IncDecision(outcome string)
	ObserveEvalDuration(seconds float64)
	IncCacheHit()
	IncCancelled()
}
