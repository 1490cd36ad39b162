// Package dsl implements the Policy DSL: a small Cedar-like language for
// expressing permit/forbid authorization policies, compiled to Rego
// modules executed by internal/rego. Types defined here never leak past
// pkg/engine; every other package speaks pkg/kernel's vocabulary instead.
package dsl

// TokenKind discriminates lexical tokens.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokString
	TokNumber

	// keywords
	TokPermit
	TokForbid
	TokWhen
	TokUnless
	TokPrincipal
	TokAction
	TokResource
	TokContext
	TokIn
	TokIs
	TokTrue
	TokFalse

	// punctuation
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
	TokComma
	TokSemicolon
	TokColon
	TokDoubleColon
	TokDot
	TokEq    // ==
	TokNe    // !=
	TokAnd   // &&
	TokOr    // ||
	TokNot   // !
)

var keywords = map[string]TokenKind{
	"permit":    TokPermit,
	"forbid":    TokForbid,
	"when":      TokWhen,
	"unless":    TokUnless,
	"principal": TokPrincipal,
	"action":    TokAction,
	"resource":  TokResource,
	"context":   TokContext,
	"in":        TokIn,
	"is":        TokIs,
	"true":      TokTrue,
	"false":     TokFalse,
}

// Token is a single lexical token with its source position, used to
// produce diagnostics with line/column information.
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int
	Column int
}
