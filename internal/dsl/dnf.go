package dsl

// atomKind discriminates the shape of a single conjunct in a DNF clause.
type atomKind int

const (
	atomCompare atomKind = iota // path OP value
	atomTruthy                  // bare path, true if its runtime value is true
	atomConst                   // a literal boolean, independent of input
)

// atom is one conjunct within a DNF clause, always expressible as a
// single Rego statement line (or omitted/short-circuited, for atomConst).
type atom struct {
	negated bool
	kind    atomKind
	path    Path
	op      string // "==" or "!=", meaningful when kind == atomCompare
	value   Expr   // Lit or EntityUIDLit or Path, meaningful when kind == atomCompare
	constVal bool  // meaningful when kind == atomConst
}

// clause is a conjunction of atoms; a DNF is a disjunction of clauses.
type clause []atom

// toDNF lowers a condition expression into disjunctive normal form: a list
// of conjunctive clauses such that the expression is true iff at least one
// clause's atoms are all true. Negation is pushed down to atoms via De
// Morgan's laws before conversion so every atom is a single comparison,
// never a compound boolean.
func toDNF(e Expr) []clause {
	return dnfOf(pushNot(e, false))
}

// pushNot rewrites e so that every Unary "!" in the tree applies directly
// to a comparison or path, never to a compound && / || subtree. neg
// tracks whether an odd number of enclosing negations apply to e.
func pushNot(e Expr, neg bool) Expr {
	switch n := e.(type) {
	case UnaryOp:
		return pushNot(n.Expr, !neg)
	case BinaryOp:
		switch n.Op {
		case "&&":
			if neg {
				// !(A && B) == !A || !B
				return BinaryOp{Op: "||", Left: pushNot(n.Left, true), Right: pushNot(n.Right, true)}
			}
			return BinaryOp{Op: "&&", Left: pushNot(n.Left, false), Right: pushNot(n.Right, false)}
		case "||":
			if neg {
				// !(A || B) == !A && !B
				return BinaryOp{Op: "&&", Left: pushNot(n.Left, true), Right: pushNot(n.Right, true)}
			}
			return BinaryOp{Op: "||", Left: pushNot(n.Left, false), Right: pushNot(n.Right, false)}
		case "==", "!=":
			op := n.Op
			if neg {
				if op == "==" {
					op = "!="
				} else {
					op = "=="
				}
			}
			return BinaryOp{Op: op, Left: n.Left, Right: n.Right}
		}
	case Path:
		if neg {
			return negatedPathMarker{Path: n}
		}
		return n
	case Lit:
		if n.Kind == LitBool && neg {
			return Lit{Kind: LitBool, Bool: !n.Bool}
		}
		return n
	}
	return e
}

// negatedPathMarker wraps a bare path that is negated by an odd number of
// enclosing "!" operators; dnfOf converts it directly into a negated
// atomTruthy atom.
type negatedPathMarker struct {
	Path Path
}

func (negatedPathMarker) exprNode() {}

func dnfOf(e Expr) []clause {
	switch n := e.(type) {
	case BinaryOp:
		switch n.Op {
		case "||":
			return append(dnfOf(n.Left), dnfOf(n.Right)...)
		case "&&":
			left := dnfOf(n.Left)
			right := dnfOf(n.Right)
			var out []clause
			for _, lc := range left {
				for _, rc := range right {
					combined := make(clause, 0, len(lc)+len(rc))
					combined = append(combined, lc...)
					combined = append(combined, rc...)
					out = append(out, combined)
				}
			}
			return out
		case "==", "!=":
			return []clause{{atom{kind: atomCompare, op: n.Op, path: asPath(n.Left), value: n.Right}}}
		}
	case Path:
		return []clause{{atom{kind: atomTruthy, path: n}}}
	case negatedPathMarker:
		return []clause{{atom{kind: atomTruthy, path: n.Path, negated: true}}}
	case Lit:
		if n.Kind == LitBool {
			return []clause{{atom{kind: atomConst, constVal: n.Bool}}}
		}
	}
	return []clause{{atom{kind: atomConst, constVal: false}}}
}

// asPath extracts the Path operand of a comparison; the parser's grammar
// only ever produces comparisons with a Path on the left, since Cedar-like
// conditions always compare an attribute access against a value.
func asPath(e Expr) Path {
	if p, ok := e.(Path); ok {
		return p
	}
	return Path{}
}
