//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package identity implements the IAM bounded context: resolving a
// principal's effective group memberships and attached policies, and
// evaluating them against an authorization request. It implements
// [kernel.IamPolicyEvaluator], the port the orchestrator depends on.
package identity

import (
	"context"

	"github.com/hodei/authzcore/pkg/kernel"
)

// UserFinder resolves a principal HRN to its kernel.HodeiEntity
// representation (attributes, group memberships via Parents()).
type UserFinder interface {
	FindUser(ctx context.Context, hrn kernel.HRN) (kernel.HodeiEntity, error)
}

// GroupFinder resolves a group HRN to its kernel.HodeiEntity
// representation. A group's own Parents() may reference further groups,
// modeling nested groups.
type GroupFinder interface {
	FindGroup(ctx context.Context, hrn kernel.HRN) (kernel.HodeiEntity, error)
}

// PolicyFinder returns the Policy DSL source texts directly attached to
// a principal or group HRN (as opposed to those inherited via
// membership, which the evaluator collects separately).
type PolicyFinder interface {
	FindPolicies(ctx context.Context, hrn kernel.HRN) ([]string, error)
}
