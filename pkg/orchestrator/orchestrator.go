package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hodei/authzcore/internal/logging"
	"github.com/hodei/authzcore/pkg/kernel"
	"github.com/hodei/authzcore/pkg/translator"
)

var logger = logging.GetLogger("orchestrator")

const agent = "orchestrator"

// Options configures an [AuthorizationOrchestrator]. Construct via
// [NewAuthorizationOrchestrator] and the With* functional options below.
type Options struct {
	cache    CachePort
	audit    AuditLogPort
	metrics  MetricsPort
	cacheTTL time.Duration
}

// OptionFunc is a functional option for [NewAuthorizationOrchestrator].
type OptionFunc func(*Options)

// WithCache installs a decision cache. Without one, every call performs
// a full evaluation.
func WithCache(c CachePort, ttl time.Duration) OptionFunc {
	return func(o *Options) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// WithAuditLog installs an audit log sink. Without one, decisions are
// not recorded anywhere but the return value.
func WithAuditLog(a AuditLogPort) OptionFunc {
	return func(o *Options) { o.audit = a }
}

// WithMetrics installs a metrics sink.
func WithMetrics(m MetricsPort) OptionFunc {
	return func(o *Options) { o.metrics = m }
}

// AuthorizationOrchestrator composes a ScpEvaluator and an
// IamPolicyEvaluator into the public authorize operation described in
// spec.md §4.7: SCP strictly precedes IAM, an explicit SCP deny
// short-circuits before IAM ever runs, and the two decisions are
// combined under AWS-style guardrail semantics.
type AuthorizationOrchestrator struct {
	scp kernel.ScpEvaluator
	iam kernel.IamPolicyEvaluator
	opt Options
}

// NewAuthorizationOrchestrator constructs an AuthorizationOrchestrator
// over the given evaluators.
func NewAuthorizationOrchestrator(scp kernel.ScpEvaluator, iam kernel.IamPolicyEvaluator, opts ...OptionFunc) *AuthorizationOrchestrator {
	o := Options{}
	for _, fn := range opts {
		fn(&o)
	}
	return &AuthorizationOrchestrator{scp: scp, iam: iam, opt: o}
}

// Authorize evaluates req and returns the combined decision.
func (a *AuthorizationOrchestrator) Authorize(ctx context.Context, req kernel.AuthorizationRequest) (kernel.Decision, error) {
	logger.Debug(agent, "Authorize", "Enter")
	defer logger.Debug(agent, "Authorize", "Exit")

	start := time.Now()
	key, err := cacheKey(req)
	if err != nil {
		return kernel.Decision{}, &OrchestrationError{Kind: ErrPrincipalResolutionFailed, Reason: err.Error()}
	}

	if a.opt.cache != nil {
		if cached, hit, err := a.opt.cache.Get(ctx, key); err == nil && hit {
			if a.opt.metrics != nil {
				a.opt.metrics.IncCacheHit()
			}
			a.recordAudit(ctx, req, cached, start, "cache hit")
			return cached, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return a.cancelled(ctx)
	}

	scpDecision, err := a.scp.EvaluateScps(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return a.cancelled(ctx)
		}
		return kernel.Decision{}, &OrchestrationError{Kind: ErrEvaluatorFailed, Which: "scp", Reason: err.Error()}
	}

	if scpDecision.Effect == kernel.EffectDeny && scpDecision.Explicit {
		a.finalize(ctx, req, scpDecision, start, "explicit SCP deny")
		return scpDecision, nil
	}

	if err := ctx.Err(); err != nil {
		return a.cancelled(ctx)
	}

	iamDecision, err := a.iam.EvaluateIamPolicies(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return a.cancelled(ctx)
		}
		return kernel.Decision{}, &OrchestrationError{Kind: ErrEvaluatorFailed, Which: "iam", Reason: err.Error()}
	}

	result := combine(scpDecision, iamDecision)
	a.finalize(ctx, req, result, start, "combined scp+iam evaluation")
	return result, nil
}

func (a *AuthorizationOrchestrator) cancelled(ctx context.Context) (kernel.Decision, error) {
	if a.opt.metrics != nil {
		a.opt.metrics.IncCancelled()
	}
	return kernel.Decision{}, &OrchestrationError{Kind: ErrCancelled, Reason: ctx.Err().Error()}
}

// finalize caches, audits, and records metrics for a non-cancelled,
// non-error result. Audit delivery failures are logged, never returned —
// spec.md §6.3 requires best-effort delivery.
func (a *AuthorizationOrchestrator) finalize(ctx context.Context, req kernel.AuthorizationRequest, decision kernel.Decision, start time.Time, reason string) {
	if a.opt.cache != nil {
		if key, err := cacheKey(req); err == nil {
			if err := a.opt.cache.Set(ctx, key, decision, a.opt.cacheTTL); err != nil {
				logger.Warnf(agent, "finalize", "cache set failed: %+v", err)
			}
		}
	}
	a.recordAudit(ctx, req, decision, start, reason)
	if a.opt.metrics != nil {
		outcome := "deny"
		if decision.Effect == kernel.EffectAllow {
			outcome = "allow"
		}
		a.opt.metrics.IncDecision(outcome)
		a.opt.metrics.ObserveEvalDuration(time.Since(start).Seconds())
	}
}

func (a *AuthorizationOrchestrator) recordAudit(ctx context.Context, req kernel.AuthorizationRequest, decision kernel.Decision, start time.Time, reason string) {
	if a.opt.audit == nil {
		return
	}
	event := AuditEvent{
		EventID:              uuid.New().String(),
		EventType:            "authz.decision",
		Timestamp:            time.Now(),
		PrincipalHRN:         req.Principal.EntityHRN().String(),
		Action:               req.Action.UID(),
		ResourceHRN:          req.Resource.EntityHRN().String(),
		Decision:             decision.Effect.String(),
		Explicit:             decision.Explicit,
		DeterminingPolicyIDs: decision.DeterminingPolicies,
		Reason:               reason,
		DurationMs:           time.Since(start).Milliseconds(),
	}
	if err := a.opt.audit.Record(ctx, event); err != nil {
		logger.Warnf(agent, "recordAudit", "audit delivery failed: %+v", err)
	}
}

// combine applies spec.md §4.7 step 4: an explicit IAM deny wins; an
// IAM allow stands when scp allows or is only an implicit deny (SCPs
// constrain, they never grant, so "no applicable SCP" blocks nothing);
// an explicit SCP allow does not turn an IAM implicit deny into an
// allow. Determining policies union both decisions'.
// combine is only reached when scp did not already produce an explicit
// deny (Authorize short-circuits that case before calling it), so scp
// here is either an allow or an implicit deny.
func combine(scp, iam kernel.Decision) kernel.Decision {
	var effect kernel.Effect
	var explicit bool
	var reason string

	switch {
	case scp.Effect == kernel.EffectAllow && iam.Effect == kernel.EffectAllow:
		effect = kernel.EffectAllow
		explicit = scp.Explicit && iam.Explicit
		reason = "scp and iam both allow"
	case iam.Effect == kernel.EffectDeny && iam.Explicit:
		effect = kernel.EffectDeny
		explicit = true
		reason = "explicit iam deny"
	case !scp.Explicit && iam.Effect == kernel.EffectAllow:
		effect = kernel.EffectAllow
		explicit = iam.Explicit
		reason = "iam allow; no applicable scp"
	case scp.Effect == kernel.EffectDeny:
		effect = kernel.EffectDeny
		reason = scp.Reason
	default:
		effect = kernel.EffectDeny
		reason = iam.Reason
	}

	var determining []string
	determining = append(determining, scp.DeterminingPolicies...)
	determining = append(determining, iam.DeterminingPolicies...)

	var diagnostics []kernel.Diagnostic
	diagnostics = append(diagnostics, scp.Diagnostics...)
	diagnostics = append(diagnostics, iam.Diagnostics...)

	return kernel.Decision{
		Effect:              effect,
		Explicit:            explicit,
		Reason:              reason,
		DeterminingPolicies: determining,
		Diagnostics:         diagnostics,
	}
}

// cacheKey fingerprints a request as SHA-256 of (principal HRN, action,
// resource HRN, canonical-JSON context), per spec.md §4.7.
func cacheKey(req kernel.AuthorizationRequest) (string, error) {
	ctxMap, err := translator.TranslateContext(req.Context)
	if err != nil {
		return "", err
	}
	ctxJSON, err := json.Marshal(ctxMap)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(req.Principal.EntityHRN().String()))
	h.Write([]byte{0})
	h.Write([]byte(req.Action.UID()))
	h.Write([]byte{0})
	h.Write([]byte(req.Resource.EntityHRN().String()))
	h.Write([]byte{0})
	h.Write(ctxJSON)
	return hex.EncodeToString(h.Sum(nil)), nil
}
