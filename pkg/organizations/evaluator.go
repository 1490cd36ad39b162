package organizations

import (
	"context"
	"strings"

	"github.com/hodei/authzcore/internal/logging"
	"github.com/hodei/authzcore/pkg/engine"
	"github.com/hodei/authzcore/pkg/kernel"
)

var logger = logging.GetLogger("organizations")

// ScpPolicyEvaluator implements [kernel.ScpEvaluator]. Service control
// policies act as guardrails, not grants: a permit merely declines to
// forbid, while a forbid is an explicit deny the orchestrator treats as
// authoritative. This evaluator reports that distinction through the
// returned kernel.Decision's Explicit flag (and its diagnostics) exactly
// as pkg/engine already does for IAM — the orchestrator reads Effect and
// Explicit to attach SCP-specific semantics to an otherwise ordinary
// decision.
type ScpPolicyEvaluator struct {
	accounts AccountFinder
	ous      OuHierarchyProvider
	scps     ScpFinder
	engine   *engine.AuthorizationEngine
}

// NewScpPolicyEvaluator constructs a ScpPolicyEvaluator over the given
// repositories and authorization engine.
func NewScpPolicyEvaluator(accounts AccountFinder, ous OuHierarchyProvider, scps ScpFinder, eng *engine.AuthorizationEngine) *ScpPolicyEvaluator {
	return &ScpPolicyEvaluator{accounts: accounts, ous: ous, scps: scps, engine: eng}
}

// EvaluateScps implements kernel.ScpEvaluator.
func (e *ScpPolicyEvaluator) EvaluateScps(ctx context.Context, req kernel.AuthorizationRequest) (kernel.Decision, error) {
	logger.Debug("organizations", "EvaluateScps", "Enter")
	defer logger.Debug("organizations", "EvaluateScps", "Exit")

	resourceHRN := req.Resource.EntityHRN()
	accountHRN, err := e.accounts.FindAccount(ctx, resourceHRN.Account)
	if err != nil {
		return kernel.Decision{}, &kernel.EvaluationError{Kind: kernel.ErrAccountNotFound, Reason: err.Error()}
	}

	path, err := e.ous.PathFromRoot(ctx, accountHRN)
	if err != nil {
		if evalErr, ok := err.(*kernel.EvaluationError); ok {
			return kernel.Decision{}, evalErr
		}
		return kernel.Decision{}, &kernel.EvaluationError{Kind: kernel.ErrRepositoryFailure, Reason: err.Error()}
	}

	texts, err := e.collectScps(ctx, path)
	if err != nil {
		return kernel.Decision{}, err
	}

	ps, err := e.engine.LoadPolicies(strings.Join(texts, "\n"))
	if err != nil {
		return kernel.Decision{}, &kernel.EvaluationError{Kind: kernel.ErrEngineFailure, Reason: err.Error()}
	}

	return e.engine.IsAuthorized(ctx, ps, req)
}

// collectScps unions the SCPs attached to every node on the path,
// deduplicating by source text so an SCP attached at more than one level
// (e.g. re-attached at both an OU and its account) is only compiled once.
func (e *ScpPolicyEvaluator) collectScps(ctx context.Context, path []kernel.HRN) ([]string, error) {
	seen := make(map[string]bool)
	var texts []string
	for _, node := range path {
		attached, err := e.scps.ScpsAttachedTo(ctx, node)
		if err != nil {
			return nil, &kernel.EvaluationError{Kind: kernel.ErrRepositoryFailure, Reason: err.Error()}
		}
		for _, t := range attached {
			if seen[t] {
				continue
			}
			seen[t] = true
			texts = append(texts, t)
		}
	}
	return texts, nil
}
