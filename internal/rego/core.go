//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package rego provides abstractions for compiling and evaluating Open
// Policy Agent (OPA) Rego modules generated from the Policy DSL.
//
// This package wraps the OPA library to provide a simplified API for the
// authorization engine. It handles module compilation, AST management, and
// query evaluation; it has no knowledge of the DSL's surface syntax, only
// of the Rego it is handed by internal/dsl's code generator.
//
// # Compiler
//
// The [Compiler] compiles Rego source into executable [Ast] objects:
//
//	compiler := rego.NewCompiler(
//	    rego.WithRegoVersion(ast.RegoV1),
//	    rego.WithUnsafeBuiltins(rego.Builtins{"http.send": {}}),
//	)
//
//	policyAst, err := compiler.Compile("policy-set", rego.Modules{
//	    "policy.rego": generatedSource,
//	})
//
// # AST Evaluation
//
// The compiled [Ast] can be evaluated with input data:
//
//	result, err := policyAst.Evaluate(ctx, "x = data.authzcore.permit", input)
package rego

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohae/deepcopy"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/hodei/authzcore/internal/logging"
)

var logger = logging.GetLogger("rego")
var agent = "rego"

// Builtins is a set of Rego built-in function names, used with
// [WithUnsafeBuiltins] to disable specific built-ins for security.
//
// [NewCompiler] itself removes no built-in; callers pass the set to
// disable through [WithUnsafeBuiltins].
type Builtins map[string]struct{}

// Compiler compiles Rego modules generated from the Policy DSL into
// executable [Ast] objects. A single Compiler can compile many policy
// sets; create one with [NewCompiler].
type Compiler struct {
	options *CompilerOptions
}

// Ast represents a compiled Rego module set ready for evaluation.
type Ast struct {
	name     string
	compiler *ast.Compiler
	trace    bool
}

// Modules maps module names to their generated Rego source.
type Modules map[string]string

// CompilerOptions holds configuration for the Rego compiler. Construct via
// [NewCompiler] and the With* functional options, not directly.
type CompilerOptions struct {
	regoVersion  ast.RegoVersion
	capabilities *ast.Capabilities
	trace        bool
}

func filter[T any](ss []T, test func(T) bool) (ret []T) {
	for _, s := range ss {
		if test(s) {
			ret = append(ret, s)
		}
	}
	return
}

// CompilerOptionFunc is a functional option for [NewCompiler] and [Compiler.Clone].
type CompilerOptionFunc func(*CompilerOptions)

// WithRegoVersion sets the Rego language version for the compiler.
func WithRegoVersion(regoVersion ast.RegoVersion) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		o.regoVersion = regoVersion
	}
}

// WithCapabilities sets the OPA capabilities for the compiler. Call before
// [WithUnsafeBuiltins] if both are used, since that option mutates
// whatever capabilities are already set.
func WithCapabilities(capabilities *ast.Capabilities) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		o.capabilities = capabilities
	}
}

// WithDefaultCapabilities resets capabilities to the OPA defaults for this version.
func WithDefaultCapabilities() CompilerOptionFunc {
	return func(o *CompilerOptions) {
		o.capabilities = ast.CapabilitiesForThisVersion()
	}
}

// WithUnsafeBuiltins removes the named built-in functions from the
// compiler's capabilities so that generated policy modules cannot call
// them. Must run after [WithCapabilities] if both are used.
func WithUnsafeBuiltins(unsafeBuiltins Builtins) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		// see: https://github.com/open-policy-agent/opa/security/advisories/GHSA-f524-rf33-2jjr
		o.capabilities.Builtins = filter(o.capabilities.Builtins, func(builtin *ast.Builtin) bool { _, ok := unsafeBuiltins[builtin.Name]; return !ok })
	}
}

// WithDefaultTracing enables or disables trace output for every
// evaluation performed through this compiler's ASTs, unless overridden
// per-call with [WithTrace]. Defaults to the current log tracing level.
func WithDefaultTracing(trace bool) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		o.trace = trace
	}
}

// NewCompiler creates a new [Compiler]. Default configuration: RegoV1,
// full OPA capabilities for this version (no built-in removed), and
// tracing based on log level.
func NewCompiler(options ...CompilerOptionFunc) *Compiler {
	opts := &CompilerOptions{
		regoVersion:  ast.RegoV1,
		capabilities: ast.CapabilitiesForThisVersion(),
		trace:        logger.IsTraceEnabled(),
	}
	for _, o := range options {
		o(opts)
	}

	return &Compiler{options: opts}
}

// Clone creates a new [Compiler] based on the current configuration,
// independently modifiable via the provided options.
func (c *Compiler) Clone(options ...CompilerOptionFunc) *Compiler {
	opts := &CompilerOptions{
		regoVersion:  c.options.regoVersion,
		capabilities: deepcopy.Copy(c.options.capabilities).(*ast.Capabilities),
		trace:        c.options.trace,
	}
	for _, o := range options {
		o(opts)
	}

	return &Compiler{options: opts}
}

// Compile parses and compiles Rego modules into an executable [Ast]. name
// identifies the policy set for logging; modules holds every generated
// Rego file needed (pkg/engine passes a single module per policy set).
func (c *Compiler) Compile(name string, modules Modules) (*Ast, error) {
	parsed := make(map[string]*ast.Module, len(modules))

	for f, module := range modules {
		pm, err := ast.ParseModuleWithOpts(f, module, ast.ParserOptions{RegoVersion: c.options.regoVersion})
		if err != nil {
			return nil, err
		}
		parsed[f] = pm
	}

	compiler := ast.NewCompiler().WithCapabilities(c.options.capabilities)

	compiler.Compile(parsed)

	if compiler.Failed() {
		return nil, compiler.Errors
	}

	return &Ast{
		name:     name,
		compiler: compiler,
		trace:    c.options.trace,
	}, nil
}

// EvalOptions holds configuration for a single evaluation.
type EvalOptions struct {
	trace bool
}

// EvalOptionFunc is a functional option for [Ast.Evaluate].
type EvalOptionFunc func(*EvalOptions)

// WithTrace enables or disables trace output for a single evaluation,
// overriding the compiler's default tracing setting.
func WithTrace(trace bool) EvalOptionFunc {
	return func(o *EvalOptions) {
		o.trace = trace
	}
}

// EvaluationError reports a failure evaluating a compiled Ast.
type EvaluationError struct {
	PolicySet string
	Reason    string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rego evaluation failed for %q: %s", e.PolicySet, e.Reason)
}

// Evaluate executes a query against the compiled module set. queryStr
// typically binds a variable to a generated rule, e.g.
// "x = data.authzcore.permit". input supplies the principal/action/
// resource/context document the translator produced.
func (p *Ast) Evaluate(ctx context.Context, queryStr string, input interface{}, options ...EvalOptionFunc) (rego.Result, error) {
	logger.Debug(agent, "Evaluate", "Enter")
	defer logger.Debug(agent, "Evaluate", "Exit")

	logger.Debugf(agent, "Evaluate", "input to rego: %+v", input)

	opts := &EvalOptions{trace: p.trace}
	for _, o := range options {
		o(opts)
	}

	query := rego.New(
		rego.Query(queryStr),
		rego.Compiler(p.compiler),
		rego.Input(input),
		rego.Trace(opts.trace),
	)

	results, err := query.Eval(ctx)
	if err != nil {
		logger.Debugf(agent, "Evaluate", "queryEval %+v", err)
		return rego.Result{}, &EvaluationError{PolicySet: p.name, Reason: err.Error()}
	}
	if len(results) == 0 {
		logger.Debugf(agent, "Evaluate", "no rego results: %s, input: %+v", p.name, input)
		return rego.Result{}, &EvaluationError{PolicySet: p.name, Reason: fmt.Sprintf("no results for query %q", queryStr)}
	}
	if opts.trace {
		regoTrace := new(strings.Builder)
		rego.PrintTraceWithLocation(regoTrace, query)
		logger.Trace(agent, "Evaluate", "rego trace:")
		fmt.Println(regoTrace.String())
	}

	return results[0], nil
}
