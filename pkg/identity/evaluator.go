package identity

import (
	"context"
	"strings"

	"github.com/hodei/authzcore/internal/logging"
	"github.com/hodei/authzcore/pkg/engine"
	"github.com/hodei/authzcore/pkg/kernel"
)

var logger = logging.GetLogger("identity")

// IdentityPolicyEvaluator implements [kernel.IamPolicyEvaluator]: on each
// request it re-resolves the principal and its group memberships live
// (rather than trusting the caller-supplied request, mirroring the
// teacher's pattern of re-fetching roles/groups/scopes on every
// Authorize call instead of caching them on the principal), walks the
// group hierarchy with cycle detection, and evaluates every reachable
// policy attachment against the request with a single engine.PolicySet.
type IdentityPolicyEvaluator struct {
	users    UserFinder
	groups   GroupFinder
	policies PolicyFinder
	engine   *engine.AuthorizationEngine
}

// NewIdentityPolicyEvaluator constructs an IdentityPolicyEvaluator over
// the given repositories and authorization engine.
func NewIdentityPolicyEvaluator(users UserFinder, groups GroupFinder, policies PolicyFinder, eng *engine.AuthorizationEngine) *IdentityPolicyEvaluator {
	return &IdentityPolicyEvaluator{users: users, groups: groups, policies: policies, engine: eng}
}

// EvaluateIamPolicies implements kernel.IamPolicyEvaluator.
func (e *IdentityPolicyEvaluator) EvaluateIamPolicies(ctx context.Context, req kernel.AuthorizationRequest) (kernel.Decision, error) {
	logger.Debug("identity", "EvaluateIamPolicies", "Enter")
	defer logger.Debug("identity", "EvaluateIamPolicies", "Exit")

	principalHRN := req.Principal.EntityHRN()

	resolved, err := e.users.FindUser(ctx, principalHRN)
	if err != nil {
		return kernel.Decision{}, &kernel.EvaluationError{Kind: kernel.ErrPrincipalNotFound, Reason: err.Error()}
	}

	groupHRNs, err := e.resolveGroups(ctx, resolved.Parents())
	if err != nil {
		return kernel.Decision{}, err
	}

	texts, err := e.collectPolicies(ctx, principalHRN, groupHRNs)
	if err != nil {
		return kernel.Decision{}, err
	}

	ps, err := e.engine.LoadPolicies(strings.Join(texts, "\n"))
	if err != nil {
		return kernel.Decision{}, &kernel.EvaluationError{Kind: kernel.ErrEngineFailure, Reason: err.Error()}
	}

	effective := req
	effective.Principal = resolved

	return e.engine.IsAuthorized(ctx, ps, effective)
}

func (e *IdentityPolicyEvaluator) collectPolicies(ctx context.Context, principal kernel.HRN, groups []kernel.HRN) ([]string, error) {
	var texts []string

	direct, err := e.policies.FindPolicies(ctx, principal)
	if err != nil {
		return nil, &kernel.EvaluationError{Kind: kernel.ErrRepositoryFailure, Reason: err.Error()}
	}
	texts = append(texts, direct...)

	for _, g := range groups {
		gt, err := e.policies.FindPolicies(ctx, g)
		if err != nil {
			return nil, &kernel.EvaluationError{Kind: kernel.ErrRepositoryFailure, Reason: err.Error()}
		}
		texts = append(texts, gt...)
	}
	return texts, nil
}

// resolveGroups walks the group-membership hierarchy starting from a
// principal's immediate parents, following each group's own Parents() to
// support nested groups, and returns every reachable group HRN exactly
// once. A group reachable via more than one path is only walked the
// first time; a group revisited while still on the current walk's path
// (rather than merely previously visited) is reported as
// [kernel.ErrCycleInGroupMembership].
func (e *IdentityPolicyEvaluator) resolveGroups(ctx context.Context, roots []kernel.HRN) ([]kernel.HRN, error) {
	var groups []kernel.HRN
	visited := make(map[kernel.HRN]bool)
	onStack := make(map[kernel.HRN]bool)
	var path []string

	var visit func(h kernel.HRN) error
	visit = func(h kernel.HRN) error {
		if onStack[h] {
			return &kernel.EvaluationError{
				Kind:   kernel.ErrCycleInGroupMembership,
				Reason: (&kernel.CycleError{Path: append(append([]string{}, path...), h.String())}).Error(),
			}
		}
		if visited[h] {
			return nil
		}

		group, err := e.groups.FindGroup(ctx, h)
		if err != nil {
			return &kernel.EvaluationError{Kind: kernel.ErrRepositoryFailure, Reason: err.Error()}
		}

		onStack[h] = true
		path = append(path, h.String())
		visited[h] = true
		groups = append(groups, h)

		for _, parent := range group.Parents() {
			if err := visit(parent); err != nil {
				return err
			}
		}

		onStack[h] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}
	return groups, nil
}
