//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package organizations implements the SCP bounded context: resolving
// the account that owns a resource, walking the organizational-unit
// hierarchy from that account to the organization root, and evaluating
// every attached service control policy as a guardrail. It implements
// [kernel.ScpEvaluator], the port the orchestrator depends on.
package organizations

import (
	"context"

	"github.com/hodei/authzcore/pkg/kernel"
)

// AccountFinder resolves an account id (the HRN account segment) to the
// canonical HRN of the account node in the organizational hierarchy.
type AccountFinder interface {
	FindAccount(ctx context.Context, accountID string) (kernel.HRN, error)
}

// OuHierarchyProvider returns the path from the organization root down to
// (and including) the given account HRN, ordered root-to-leaf.
// Implementations are responsible for detecting cycles in the
// organizational hierarchy and reporting them via
// [kernel.ErrCycleInOuHierarchy].
type OuHierarchyProvider interface {
	PathFromRoot(ctx context.Context, accountHRN kernel.HRN) ([]kernel.HRN, error)
}

// ScpFinder returns the Policy DSL source texts of the service control
// policies directly attached to a node (an OU or an account) in the
// organizational hierarchy.
type ScpFinder interface {
	ScpsAttachedTo(ctx context.Context, nodeHRN kernel.HRN) ([]string, error)
}
