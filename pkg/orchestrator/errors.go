package orchestrator

import "fmt"

// OrchestrationError reports a failure at the orchestrator boundary,
// distinct from the evaluation-port errors kernel.EvaluationError
// reports — an OrchestrationError names which orchestration step failed,
// wrapping the underlying error rather than replacing it.
type OrchestrationError struct {
	Kind   string
	Which  string // set only for EvaluatorFailed: "scp" | "iam"
	Reason string
}

func (e *OrchestrationError) Error() string {
	if e.Which != "" {
		return fmt.Sprintf("orchestration error (%s, %s): %s", e.Kind, e.Which, e.Reason)
	}
	return fmt.Sprintf("orchestration error (%s): %s", e.Kind, e.Reason)
}

// Orchestration error kinds, per spec.md §4.7.
const (
	ErrPrincipalResolutionFailed = "PrincipalResolutionFailed"
	ErrResourceResolutionFailed  = "ResourceResolutionFailed"
	ErrEvaluatorFailed           = "EvaluatorFailed"
	ErrCancelled                 = "Cancelled"
	ErrTimeout                   = "Timeout"
)
