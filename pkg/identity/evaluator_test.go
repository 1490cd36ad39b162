package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/authzcore/pkg/engine"
	"github.com/hodei/authzcore/pkg/identity"
	"github.com/hodei/authzcore/pkg/identity/memory"
	"github.com/hodei/authzcore/pkg/kernel"
)

type testAction struct {
	name kernel.ActionName
}

func (a testAction) ActionName() kernel.ActionName                    { return a.name }
func (a testAction) AppliesToPrincipal(t kernel.ResourceTypeName) bool { return true }
func (a testAction) AppliesToResource(t kernel.ResourceTypeName) bool  { return true }
func (a testAction) UID() string                                      { return kernel.ActionUID(a.name) }

type bareEntity struct {
	hrn kernel.HRN
	typ kernel.ResourceTypeName
	svc kernel.ServiceName
}

func (e bareEntity) TypeName() kernel.ResourceTypeName                     { return e.typ }
func (e bareEntity) Service() kernel.ServiceName                           { return e.svc }
func (e bareEntity) EntityHRN() kernel.HRN                                 { return e.hrn }
func (e bareEntity) Attributes() map[kernel.AttributeName]kernel.AttributeValue { return nil }
func (e bareEntity) Parents() []kernel.HRN                                 { return nil }

func mustHRN(t *testing.T, s string) kernel.HRN {
	t.Helper()
	h, err := kernel.ParseHRN(s)
	require.NoError(t, err)
	return h
}

func TestEvaluateIamPoliciesDirectPolicyAllows(t *testing.T) {
	store := memory.NewStore()
	alice := mustHRN(t, "hrn:aws:iam::123:user/alice")
	store.PutUser(memory.Entity{HRN: alice, Type: "user", Svc: "iam"})
	store.AttachPolicy(alice, `permit (principal, action, resource);`)

	eval := identity.NewIdentityPolicyEvaluator(store, store, store, engine.NewAuthorizationEngine(nil))

	req := kernel.AuthorizationRequest{
		Principal: bareEntity{hrn: alice, typ: "user", svc: "iam"},
		Action:    testAction{name: "s3:GetObject"},
		Resource:  bareEntity{hrn: mustHRN(t, "hrn:aws:s3::123:bucket/b"), typ: "bucket", svc: "s3"},
	}
	decision, err := eval.EvaluateIamPolicies(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectAllow, decision.Effect)
}

func TestEvaluateIamPoliciesInheritsGroupPolicy(t *testing.T) {
	store := memory.NewStore()
	alice := mustHRN(t, "hrn:aws:iam::123:user/alice")
	admins := mustHRN(t, "hrn:aws:iam::123:group/admins")

	store.PutUser(memory.Entity{HRN: alice, Type: "user", Svc: "iam", ParentHRNs: []kernel.HRN{admins}})
	store.PutGroup(memory.Entity{HRN: admins, Type: "group", Svc: "iam"})
	store.AttachPolicy(admins, `permit (principal in iam::group::"admins", action, resource);`)

	eval := identity.NewIdentityPolicyEvaluator(store, store, store, engine.NewAuthorizationEngine(nil))

	req := kernel.AuthorizationRequest{
		Principal: bareEntity{hrn: alice, typ: "user", svc: "iam"},
		Action:    testAction{name: "s3:DeleteBucket"},
		Resource:  bareEntity{hrn: mustHRN(t, "hrn:aws:s3::123:bucket/b"), typ: "bucket", svc: "s3"},
	}
	decision, err := eval.EvaluateIamPolicies(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectAllow, decision.Effect)
}

func TestEvaluateIamPoliciesNoPoliciesIsImplicitDeny(t *testing.T) {
	store := memory.NewStore()
	alice := mustHRN(t, "hrn:aws:iam::123:user/alice")
	store.PutUser(memory.Entity{HRN: alice, Type: "user", Svc: "iam"})

	eval := identity.NewIdentityPolicyEvaluator(store, store, store, engine.NewAuthorizationEngine(nil))

	req := kernel.AuthorizationRequest{
		Principal: bareEntity{hrn: alice, typ: "user", svc: "iam"},
		Action:    testAction{name: "s3:GetObject"},
		Resource:  bareEntity{hrn: mustHRN(t, "hrn:aws:s3::123:bucket/b"), typ: "bucket", svc: "s3"},
	}
	decision, err := eval.EvaluateIamPolicies(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectDeny, decision.Effect)
}

func TestEvaluateIamPoliciesUnknownPrincipalFails(t *testing.T) {
	store := memory.NewStore()
	eval := identity.NewIdentityPolicyEvaluator(store, store, store, engine.NewAuthorizationEngine(nil))

	req := kernel.AuthorizationRequest{
		Principal: bareEntity{hrn: mustHRN(t, "hrn:aws:iam::123:user/ghost"), typ: "user", svc: "iam"},
		Action:    testAction{name: "s3:GetObject"},
		Resource:  bareEntity{hrn: mustHRN(t, "hrn:aws:s3::123:bucket/b"), typ: "bucket", svc: "s3"},
	}
	_, err := eval.EvaluateIamPolicies(context.Background(), req)
	require.Error(t, err)
	evalErr, ok := err.(*kernel.EvaluationError)
	require.True(t, ok)
	assert.Equal(t, kernel.ErrPrincipalNotFound, evalErr.Kind)
}

func TestEvaluateIamPoliciesDetectsGroupMembershipCycle(t *testing.T) {
	store := memory.NewStore()
	alice := mustHRN(t, "hrn:aws:iam::123:user/alice")
	a := mustHRN(t, "hrn:aws:iam::123:group/a")
	b := mustHRN(t, "hrn:aws:iam::123:group/b")

	store.PutUser(memory.Entity{HRN: alice, Type: "user", Svc: "iam", ParentHRNs: []kernel.HRN{a}})
	store.PutGroup(memory.Entity{HRN: a, Type: "group", Svc: "iam", ParentHRNs: []kernel.HRN{b}})
	store.PutGroup(memory.Entity{HRN: b, Type: "group", Svc: "iam", ParentHRNs: []kernel.HRN{a}})

	eval := identity.NewIdentityPolicyEvaluator(store, store, store, engine.NewAuthorizationEngine(nil))

	req := kernel.AuthorizationRequest{
		Principal: bareEntity{hrn: alice, typ: "user", svc: "iam"},
		Action:    testAction{name: "s3:GetObject"},
		Resource:  bareEntity{hrn: mustHRN(t, "hrn:aws:s3::123:bucket/b"), typ: "bucket", svc: "s3"},
	}
	_, err := eval.EvaluateIamPolicies(context.Background(), req)
	require.Error(t, err)
	evalErr, ok := err.(*kernel.EvaluationError)
	require.True(t, ok)
	assert.Equal(t, kernel.ErrCycleInGroupMembership, evalErr.Kind)
}

func TestEvaluateIamPoliciesSharedGroupVisitedOnce(t *testing.T) {
	store := memory.NewStore()
	alice := mustHRN(t, "hrn:aws:iam::123:user/alice")
	a := mustHRN(t, "hrn:aws:iam::123:group/a")
	b := mustHRN(t, "hrn:aws:iam::123:group/b")
	shared := mustHRN(t, "hrn:aws:iam::123:group/shared")

	// alice is a member of both a and b, and both a and b nest under
	// shared — a diamond, not a cycle.
	store.PutUser(memory.Entity{HRN: alice, Type: "user", Svc: "iam", ParentHRNs: []kernel.HRN{a, b}})
	store.PutGroup(memory.Entity{HRN: a, Type: "group", Svc: "iam", ParentHRNs: []kernel.HRN{shared}})
	store.PutGroup(memory.Entity{HRN: b, Type: "group", Svc: "iam", ParentHRNs: []kernel.HRN{shared}})
	store.PutGroup(memory.Entity{HRN: shared, Type: "group", Svc: "iam"})
	store.AttachPolicy(shared, `permit (principal, action, resource);`)

	eval := identity.NewIdentityPolicyEvaluator(store, store, store, engine.NewAuthorizationEngine(nil))

	req := kernel.AuthorizationRequest{
		Principal: bareEntity{hrn: alice, typ: "user", svc: "iam"},
		Action:    testAction{name: "s3:GetObject"},
		Resource:  bareEntity{hrn: mustHRN(t, "hrn:aws:s3::123:bucket/b"), typ: "bucket", svc: "s3"},
	}
	decision, err := eval.EvaluateIamPolicies(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, kernel.EffectAllow, decision.Effect)
}
