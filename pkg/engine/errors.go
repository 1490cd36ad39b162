//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package engine implements the authorization engine: compiling Policy
// DSL source into an executable PolicySet and evaluating an
// AuthorizationRequest against it. It is the only package that imports
// both internal/dsl and internal/rego; callers never see either.
package engine

import "fmt"

// EngineError is the structured error type for every failure this
// package can produce: policy parsing, compilation, or evaluation.
type EngineError struct {
	Kind   string
	Reason string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error (%s): %s", e.Kind, e.Reason)
}

// EngineError kinds.
const (
	ErrPolicyParse      = "PolicyParse"
	ErrPolicyCompile    = "PolicyCompile"
	ErrTranslation      = "Translation"
	ErrEvaluation       = "Evaluation"
	ErrMalformedVerdict = "MalformedVerdict"
	ErrUnknownAction    = "UnknownAction"
)
