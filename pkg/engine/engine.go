package engine

import (
	"context"
	"fmt"

	opaast "github.com/open-policy-agent/opa/v1/ast"

	"github.com/hodei/authzcore/internal/dsl"
	"github.com/hodei/authzcore/internal/logging"
	"github.com/hodei/authzcore/internal/rego"
	"github.com/hodei/authzcore/pkg/kernel"
	"github.com/hodei/authzcore/pkg/schema"
	"github.com/hodei/authzcore/pkg/translator"
)

var logger = logging.GetLogger("engine")

// EngineOptions configures an [AuthorizationEngine]. Construct via
// [NewAuthorizationEngine] and the With* functional options below, not
// directly — mirrors the teacher's pkg/core/options.EngineOptions shape.
type EngineOptions struct {
	compilerOptions []rego.CompilerOptionFunc
}

// EngineOptionFunc is a functional option for [NewAuthorizationEngine].
type EngineOptionFunc func(*EngineOptions)

// WithCompilerOptions passes through additional internal/rego compiler
// options (e.g. a non-default Rego version, extra capability
// restrictions).
func WithCompilerOptions(opts ...rego.CompilerOptionFunc) EngineOptionFunc {
	return func(o *EngineOptions) {
		o.compilerOptions = append(o.compilerOptions, opts...)
	}
}

// AuthorizationEngine compiles Policy DSL source into [PolicySet]s and
// evaluates [kernel.AuthorizationRequest]s against them. One engine
// instance may be shared across any number of policy sets; it holds no
// per-request state.
type AuthorizationEngine struct {
	compiler *rego.Compiler
	schema   *schema.Schema
}

// NewAuthorizationEngine constructs an AuthorizationEngine bound to the
// given schema, as emitted by [schema.SchemaBuilder.Build]. The engine
// itself is agnostic to any particular schema instance — it holds the
// one passed here immutably, per spec.md §4.4's "engine holds the
// schema and is shared read-only". sch may be nil, which disables
// unknown-action validation (useful for isolated engine tests that
// don't need a full schema registration pipeline); every production
// caller should pass a built schema.
//
// By default, the http.send and opa.runtime Rego built-ins are removed
// from the compiler's capabilities; other built-ins stay available.
func NewAuthorizationEngine(sch *schema.Schema, opts ...EngineOptionFunc) *AuthorizationEngine {
	options := &EngineOptions{}
	for _, o := range opts {
		o(options)
	}

	defaultUnsafe := rego.Builtins{"http.send": {}, "opa.runtime": {}}
	compilerOpts := append([]rego.CompilerOptionFunc{
		rego.WithRegoVersion(opaast.RegoV1),
		rego.WithUnsafeBuiltins(defaultUnsafe),
	}, options.compilerOptions...)

	return &AuthorizationEngine{compiler: rego.NewCompiler(compilerOpts...), schema: sch}
}

// PolicySet is an opaque, compiled collection of Policy DSL statements
// ready for evaluation. Per the engine's design, a PolicySet is built
// fresh for each evaluator call (or cached by the caller) — the engine
// itself holds no global, mutable policy store.
type PolicySet struct {
	ast       *rego.Ast
	policyIDs map[string]dsl.Effect
}

// LoadPolicies parses and compiles Policy DSL source into a [PolicySet].
// source may contain any number of semicolon-terminated permit/forbid
// statements.
func (e *AuthorizationEngine) LoadPolicies(source string) (*PolicySet, error) {
	logger.Debug("engine", "LoadPolicies", "Enter")
	defer logger.Debug("engine", "LoadPolicies", "Exit")

	policies, err := dsl.ParsePolicySet(source)
	if err != nil {
		return nil, &EngineError{Kind: ErrPolicyParse, Reason: err.Error()}
	}

	compiled, err := dsl.CompileToRego(policies)
	if err != nil {
		return nil, &EngineError{Kind: ErrPolicyCompile, Reason: err.Error()}
	}

	policyAst, err := e.compiler.Compile("policy-set", rego.Modules{"policies.rego": compiled.Source})
	if err != nil {
		return nil, &EngineError{Kind: ErrPolicyCompile, Reason: err.Error()}
	}

	return &PolicySet{ast: policyAst, policyIDs: compiled.PolicyIDs}, nil
}

// verdict is the shape the combined Rego query binds its three top-level
// variables to.
type verdict struct {
	Permit  bool
	Forbid  bool
	Matched []string
}

// matched is read through object.get so the query stays defined for an
// empty policy set, whose module has no "matched" rule at all.
const combinedQuery = `permit = data.authzcore.permit; forbid = data.authzcore.forbid; matched = object.get(data.authzcore, "matched", set())`

// IsAuthorized evaluates req against ps and returns a [kernel.Decision].
// Evaluation order follows Cedar/IAM semantics: an explicit forbid always
// wins over an explicit permit; the absence of any matching permit is an
// implicit deny.
func (e *AuthorizationEngine) IsAuthorized(ctx context.Context, ps *PolicySet, req kernel.AuthorizationRequest) (kernel.Decision, error) {
	logger.Debugf("engine", "IsAuthorized", "evaluating action %s", req.Action.UID())

	if !e.isKnownAction(req.Action) {
		return kernel.Decision{}, &EngineError{Kind: ErrUnknownAction, Reason: fmt.Sprintf("action %q is not registered in the schema", req.Action.ActionName())}
	}

	input, err := translator.TranslateRequest(req)
	if err != nil {
		return kernel.Decision{}, &EngineError{Kind: ErrTranslation, Reason: err.Error()}
	}

	result, err := ps.ast.Evaluate(ctx, combinedQuery, input)
	if err != nil {
		return kernel.Decision{}, &EngineError{Kind: ErrEvaluation, Reason: err.Error()}
	}

	v, err := parseVerdict(result.Bindings)
	if err != nil {
		return kernel.Decision{}, err
	}

	determining := determiningPolicies(ps, v)

	if v.Forbid {
		return kernel.Decision{
			Effect:              kernel.EffectDeny,
			Explicit:            true,
			Reason:              "explicit forbid",
			DeterminingPolicies: determining,
			Diagnostics:         diagnosticsFor(determining, ps, kernel.DiagExplicitDeny),
		}, nil
	}
	if v.Permit {
		return kernel.Decision{
			Effect:              kernel.EffectAllow,
			Explicit:            true,
			Reason:              "explicit permit",
			DeterminingPolicies: determining,
			Diagnostics:         diagnosticsFor(determining, ps, kernel.DiagExplicitAllow),
		}, nil
	}
	const implicitDenyReason = "implicit deny (principle of least privilege)"
	return kernel.Decision{
		Effect:   kernel.EffectDeny,
		Explicit: false,
		Reason:   implicitDenyReason,
		Diagnostics: []kernel.Diagnostic{{
			Code:    kernel.DiagNoApplicablePolicies,
			Message: implicitDenyReason,
		}},
	}, nil
}

// parseVerdict extracts the combined query's three bindings from a
// rego.Result's Bindings map (rego.Vars, effectively map[string]interface{}).
func parseVerdict(bindings map[string]interface{}) (verdict, error) {
	permit, ok := bindings["permit"].(bool)
	if !ok {
		return verdict{}, &EngineError{Kind: ErrMalformedVerdict, Reason: "missing or non-boolean 'permit' binding"}
	}
	forbid, ok := bindings["forbid"].(bool)
	if !ok {
		return verdict{}, &EngineError{Kind: ErrMalformedVerdict, Reason: "missing or non-boolean 'forbid' binding"}
	}

	var matched []string
	if raw, ok := bindings["matched"].([]interface{}); ok {
		for _, m := range raw {
			if s, ok := m.(string); ok {
				matched = append(matched, s)
			}
		}
	}

	return verdict{Permit: permit, Forbid: forbid, Matched: matched}, nil
}

func diagnosticsFor(ids []string, ps *PolicySet, code kernel.DiagnosticCode) []kernel.Diagnostic {
	diags := make([]kernel.Diagnostic, 0, len(ids))
	for _, id := range ids {
		effect := ps.policyIDs[id]
		msg := "policy matched with effect permit"
		if effect == dsl.EffectForbid {
			msg = "policy matched with effect forbid"
		}
		diags = append(diags, kernel.Diagnostic{PolicyID: id, Code: code, Message: msg})
	}
	return diags
}

// isKnownAction reports whether req's action is registered in the
// engine's schema, grouped under the action's "service" prefix exactly
// as schema.SchemaBuilder.Build groups them. A nil schema (construction
// without one) always passes, trading validation for test convenience.
func (e *AuthorizationEngine) isKnownAction(action kernel.ActionType) bool {
	if e.schema == nil {
		return true
	}
	name := action.ActionName()
	svc := actionService(name)
	for _, known := range e.schema.Actions[svc] {
		if known == name {
			return true
		}
	}
	return false
}

// actionService extracts the "service" prefix from an ActionName of the
// form "service:Verb", mirroring pkg/schema's own (unexported)
// serviceOfAction so the two packages agree on the grouping without the
// engine reaching into schema's internals.
func actionService(name kernel.ActionName) kernel.ServiceName {
	s := string(name)
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return kernel.ServiceName(s[:i])
		}
	}
	return kernel.ServiceName(s)
}

func determiningPolicies(ps *PolicySet, v verdict) []string {
	var out []string
	wantForbid := v.Forbid
	for _, id := range v.Matched {
		effect, ok := ps.policyIDs[id]
		if !ok {
			continue
		}
		if wantForbid && effect == dsl.EffectForbid {
			out = append(out, id)
		} else if !wantForbid && effect == dsl.EffectPermit {
			out = append(out, id)
		}
	}
	return out
}
