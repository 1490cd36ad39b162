package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/authzcore/pkg/kernel"
	"github.com/hodei/authzcore/pkg/orchestrator"
)

type bareEntity struct {
	hrn kernel.HRN
}

func (e bareEntity) TypeName() kernel.ResourceTypeName                     { return "user" }
func (e bareEntity) Service() kernel.ServiceName                           { return "iam" }
func (e bareEntity) EntityHRN() kernel.HRN                                 { return e.hrn }
func (e bareEntity) Attributes() map[kernel.AttributeName]kernel.AttributeValue { return nil }
func (e bareEntity) Parents() []kernel.HRN                                 { return nil }

type testAction struct{ name kernel.ActionName }

func (a testAction) ActionName() kernel.ActionName                    { return a.name }
func (a testAction) AppliesToPrincipal(t kernel.ResourceTypeName) bool { return true }
func (a testAction) AppliesToResource(t kernel.ResourceTypeName) bool  { return true }
func (a testAction) UID() string                                      { return kernel.ActionUID(a.name) }

func mustHRN(t *testing.T, s string) kernel.HRN {
	t.Helper()
	h, err := kernel.ParseHRN(s)
	require.NoError(t, err)
	return h
}

func newRequest(t *testing.T) kernel.AuthorizationRequest {
	return kernel.AuthorizationRequest{
		Principal: bareEntity{hrn: mustHRN(t, "hrn:aws:iam::123:user/alice")},
		Action:    testAction{name: "s3:GetObject"},
		Resource:  bareEntity{hrn: mustHRN(t, "hrn:aws:s3::123:bucket/b")},
	}
}

type stubEvaluator struct {
	decision kernel.Decision
	err      error
	called   bool
}

func (s *stubEvaluator) EvaluateScps(ctx context.Context, req kernel.AuthorizationRequest) (kernel.Decision, error) {
	s.called = true
	return s.decision, s.err
}

func (s *stubEvaluator) EvaluateIamPolicies(ctx context.Context, req kernel.AuthorizationRequest) (kernel.Decision, error) {
	s.called = true
	return s.decision, s.err
}

func allowDecision(explicit bool) kernel.Decision {
	code := kernel.DiagNoApplicablePolicies
	ids := []string(nil)
	reason := "implicit deny (principle of least privilege)"
	if explicit {
		code = kernel.DiagExplicitAllow
		ids = []string{"policy0"}
		reason = "explicit permit"
	}
	return kernel.Decision{Effect: kernel.EffectAllow, Explicit: explicit, Reason: reason, DeterminingPolicies: ids, Diagnostics: []kernel.Diagnostic{{Code: code}}}
}

func denyDecision(explicit bool) kernel.Decision {
	code := kernel.DiagNoApplicablePolicies
	ids := []string(nil)
	reason := "implicit deny (principle of least privilege)"
	if explicit {
		code = kernel.DiagExplicitDeny
		ids = []string{"policy0"}
		reason = "explicit forbid"
	}
	return kernel.Decision{Effect: kernel.EffectDeny, Explicit: explicit, Reason: reason, DeterminingPolicies: ids, Diagnostics: []kernel.Diagnostic{{Code: code}}}
}

func TestAuthorizeAllowsWhenBothAllow(t *testing.T) {
	scp := &stubEvaluator{decision: allowDecision(true)}
	iam := &stubEvaluator{decision: allowDecision(true)}
	orch := orchestrator.NewAuthorizationOrchestrator(scp, iam)

	decision, err := orch.Authorize(context.Background(), newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectAllow, decision.Effect)
	assert.True(t, iam.called, "iam evaluator must run when scp does not explicitly deny")
}

func TestAuthorizeExplicitScpDenyShortCircuitsIam(t *testing.T) {
	scp := &stubEvaluator{decision: denyDecision(true)}
	iam := &stubEvaluator{decision: allowDecision(true)}
	orch := orchestrator.NewAuthorizationOrchestrator(scp, iam)

	decision, err := orch.Authorize(context.Background(), newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectDeny, decision.Effect)
	assert.False(t, iam.called, "an explicit SCP deny must short-circuit before the IAM evaluator runs")
}

func TestAuthorizeImplicitScpDenyIsPermissiveAndIamDecides(t *testing.T) {
	scp := &stubEvaluator{decision: denyDecision(false)}
	iam := &stubEvaluator{decision: allowDecision(true)}
	orch := orchestrator.NewAuthorizationOrchestrator(scp, iam)

	decision, err := orch.Authorize(context.Background(), newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectAllow, decision.Effect, "an implicit SCP deny (no matching SCP) must not block an IAM allow")
	assert.True(t, iam.called)
}

func TestAuthorizeIamExplicitDenyOverridesScpAllow(t *testing.T) {
	scp := &stubEvaluator{decision: allowDecision(true)}
	iam := &stubEvaluator{decision: denyDecision(true)}
	orch := orchestrator.NewAuthorizationOrchestrator(scp, iam)

	decision, err := orch.Authorize(context.Background(), newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectDeny, decision.Effect)
}

func TestAuthorizeEvaluatorErrorWraps(t *testing.T) {
	scp := &stubEvaluator{err: errors.New("repository down")}
	iam := &stubEvaluator{decision: allowDecision(true)}
	orch := orchestrator.NewAuthorizationOrchestrator(scp, iam)

	_, err := orch.Authorize(context.Background(), newRequest(t))
	require.Error(t, err)
	var orchErr *orchestrator.OrchestrationError
	require.True(t, errors.As(err, &orchErr))
	assert.Equal(t, orchestrator.ErrEvaluatorFailed, orchErr.Kind)
	assert.Equal(t, "scp", orchErr.Which)
}

func TestAuthorizeCancelledContextShortCircuits(t *testing.T) {
	scp := &stubEvaluator{decision: allowDecision(false)}
	iam := &stubEvaluator{decision: allowDecision(true)}
	orch := orchestrator.NewAuthorizationOrchestrator(scp, iam)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Authorize(ctx, newRequest(t))
	require.Error(t, err)
	var orchErr *orchestrator.OrchestrationError
	require.True(t, errors.As(err, &orchErr))
	assert.Equal(t, orchestrator.ErrCancelled, orchErr.Kind)
	assert.False(t, scp.called)
}

func TestAuthorizeCacheHitSkipsEvaluators(t *testing.T) {
	scp := &stubEvaluator{decision: allowDecision(true)}
	iam := &stubEvaluator{decision: allowDecision(true)}
	cache := orchestrator.NewInMemoryCache()
	orch := orchestrator.NewAuthorizationOrchestrator(scp, iam, orchestrator.WithCache(cache, time.Minute))

	req := newRequest(t)
	decision, err := orch.Authorize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectAllow, decision.Effect)
	assert.True(t, scp.called)

	scp.called = false
	iam.called = false
	decision2, err := orch.Authorize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectAllow, decision2.Effect)
	assert.False(t, scp.called, "a cache hit must skip re-evaluation")
	assert.False(t, iam.called)
}
