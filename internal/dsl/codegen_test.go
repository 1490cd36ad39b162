package dsl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileToRegoBareScopes(t *testing.T) {
	policies, err := ParsePolicySet(`permit (principal, action, resource);`)
	require.NoError(t, err)
	mod, err := CompileToRego(policies)
	require.NoError(t, err)
	assert.Contains(t, mod.Source, "package authzcore")
	assert.Contains(t, mod.Source, "policy0 if {")
	assert.Contains(t, mod.Source, "permit if { policy0 }")
	assert.Equal(t, EffectPermit, mod.PolicyIDs["policy0"])
}

func TestCompileToRegoScopeEquality(t *testing.T) {
	policies, err := ParsePolicySet(`
permit (
  principal == IAM::User::"alice",
  action == IAM::Action::"GetObject",
  resource
);`)
	require.NoError(t, err)
	mod, err := CompileToRego(policies)
	require.NoError(t, err)
	assert.Contains(t, mod.Source, `input.principal.uid == "IAM::User::\"alice\""`)
	assert.Contains(t, mod.Source, `input.action.uid == "IAM::Action::\"GetObject\""`)
}

func TestCompileToRegoConditionDNF(t *testing.T) {
	policies, err := ParsePolicySet(`
permit (principal, action, resource) when {
  resource.classification == "public" || principal.department == "engineering"
};`)
	require.NoError(t, err)
	mod, err := CompileToRego(policies)
	require.NoError(t, err)
	// one clause per OR branch => two "policy0 if {" bodies
	assert.Equal(t, 2, strings.Count(mod.Source, "policy0 if {"))
	assert.Contains(t, mod.Source, `input.resource.attrs.classification == "public"`)
	assert.Contains(t, mod.Source, `input.principal.attrs.department == "engineering"`)
}

func TestCompileToRegoUnlessNegates(t *testing.T) {
	policies, err := ParsePolicySet(`
forbid (principal, action, resource) unless {
  principal.isAdmin == true
};`)
	require.NoError(t, err)
	mod, err := CompileToRego(policies)
	require.NoError(t, err)
	assert.Contains(t, mod.Source, `input.principal.attrs.isAdmin != true`)
	assert.Contains(t, mod.Source, "forbid if { policy0 }")
}

func TestCompileToRegoScopeInProducesAlternatives(t *testing.T) {
	policies, err := ParsePolicySet(`
permit (principal in IAM::Group::"admins", action, resource);`)
	require.NoError(t, err)
	mod, err := CompileToRego(policies)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(mod.Source, "policy0 if {"))
	assert.Contains(t, mod.Source, `"IAM::Group::\"admins\"" in input.principal.parents`)
}
