package dsl

import (
	"fmt"
	"strconv"
	"strings"
)

const regoPackage = "authzcore"

func entityUIDString(u EntityUID) string {
	return fmt.Sprintf(`%s::%s::"%s"`, u.Service, u.Type, u.ID)
}

func renderPath(p Path) string {
	if len(p.Segments) == 0 {
		return "input"
	}
	slot := p.Segments[0]
	if len(p.Segments) == 1 {
		switch slot {
		case "principal", "resource", "action":
			return "input." + slot + ".uid"
		case "context":
			return "input.context"
		default:
			return "input." + slot
		}
	}
	var sb strings.Builder
	sb.WriteString("input.")
	sb.WriteString(slot)
	sb.WriteString(".attrs")
	for _, seg := range p.Segments[1:] {
		sb.WriteString(".")
		sb.WriteString(seg)
	}
	return sb.String()
}

func renderValue(e Expr) (string, error) {
	switch n := e.(type) {
	case Lit:
		switch n.Kind {
		case LitBool:
			return strconv.FormatBool(n.Bool), nil
		case LitLong:
			return strconv.FormatInt(n.Long, 10), nil
		case LitString:
			return strconv.Quote(n.Str), nil
		}
	case EntityUIDLit:
		return strconv.Quote(entityUIDString(n.UID)), nil
	case Path:
		return renderPath(n), nil
	}
	return "", fmt.Errorf("unsupported value expression %T", e)
}

func renderAtom(a atom) (string, error) {
	switch a.kind {
	case atomConst:
		if a.constVal {
			return "true", nil
		}
		return "false", nil
	case atomTruthy:
		text := renderPath(a.path)
		if a.negated {
			return "not " + text, nil
		}
		return text, nil
	case atomCompare:
		left := renderPath(a.path)
		right, err := renderValue(a.value)
		if err != nil {
			return "", err
		}
		return left + " " + a.op + " " + right, nil
	}
	return "", fmt.Errorf("unknown atom kind %d", a.kind)
}

func scopeAlts(slot string, s Scope) [][]string {
	switch s.Kind {
	case ScopeEq:
		uid := entityUIDString(s.EntityUID)
		return [][]string{{fmt.Sprintf("input.%s.uid == %q", slot, uid)}}
	case ScopeIn:
		uid := entityUIDString(s.EntityUID)
		return [][]string{
			{fmt.Sprintf("input.%s.uid == %q", slot, uid)},
			{fmt.Sprintf("%q in input.%s.parents", uid, slot)},
		}
	case ScopeIs:
		return [][]string{{fmt.Sprintf("input.%s.type == %q", slot, s.TypeName)}}
	default: // ScopeAny
		return [][]string{{}}
	}
}

func crossProduct(groups [][][]string) [][]string {
	combos := [][]string{{}}
	for _, alts := range groups {
		var next [][]string
		for _, existing := range combos {
			for _, alt := range alts {
				merged := make([]string, 0, len(existing)+len(alt))
				merged = append(merged, existing...)
				merged = append(merged, alt...)
				next = append(next, merged)
			}
		}
		combos = next
	}
	return combos
}

// CompiledModule is the output of [CompileToRego]: a single Rego module.
// The module exposes, per policy, one or more rule bodies named after the
// policy's ID (one body per scope/condition disjunct), two aggregate
// rules, "permit" and "forbid", each true iff at least one policy of that
// effect matched, and a partial set "matched" holding the IDs of the
// policies that matched. pkg/engine queries all three and consults
// PolicyIDs to attribute the verdict to determining policies.
type CompiledModule struct {
	Source     string
	PolicyIDs  map[string]Effect // policy ID -> effect, for determining-policy attribution
}

// CompileToRego generates the Rego source implementing policies.
func CompileToRego(policies []*Policy) (*CompiledModule, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("package %s\n\n", regoPackage))
	sb.WriteString("default permit := false\n")
	sb.WriteString("default forbid := false\n\n")

	ids := make(map[string]Effect, len(policies))
	var permitIDs, forbidIDs []string

	for _, pol := range policies {
		ids[pol.ID] = pol.Effect
		if pol.Effect == EffectPermit {
			permitIDs = append(permitIDs, pol.ID)
		} else {
			forbidIDs = append(forbidIDs, pol.ID)
		}

		principalAlts := scopeAlts("principal", pol.Principal)
		actionAlts := scopeAlts("action", pol.Action)
		resourceAlts := scopeAlts("resource", pol.Resource)

		var conditionAlts [][]string
		if pol.Condition != nil {
			clauses := toDNF(pol.Condition.Expr)
			if pol.Condition.Kind == ConditionUnless {
				clauses = negateClauses(clauses)
			}
			for _, cl := range clauses {
				var stmts []string
				for _, a := range cl {
					text, err := renderAtom(a)
					if err != nil {
						return nil, err
					}
					stmts = append(stmts, text)
				}
				conditionAlts = append(conditionAlts, stmts)
			}
		} else {
			conditionAlts = [][]string{{}}
		}

		combos := crossProduct([][][]string{principalAlts, actionAlts, resourceAlts, conditionAlts})
		for _, combo := range combos {
			sb.WriteString(fmt.Sprintf("%s if {\n", pol.ID))
			if len(combo) == 0 {
				sb.WriteString("\ttrue\n")
			}
			for _, stmt := range combo {
				sb.WriteString("\t")
				sb.WriteString(stmt)
				sb.WriteString("\n")
			}
			sb.WriteString("}\n\n")
		}
	}

	for _, id := range permitIDs {
		sb.WriteString(fmt.Sprintf("permit if { %s }\n", id))
	}
	sb.WriteString("\n")
	for _, id := range forbidIDs {
		sb.WriteString(fmt.Sprintf("forbid if { %s }\n", id))
	}
	sb.WriteString("\n")
	for id := range ids {
		sb.WriteString(fmt.Sprintf("matched contains %q if { %s }\n", id, id))
	}

	return &CompiledModule{Source: sb.String(), PolicyIDs: ids}, nil
}

// negateClauses distributes a logical NOT across a DNF (used for "unless"
// clauses, which are sugar for "when !(expr)"): !(C1 || C2 || ...) is the
// conjunction of the negation of every clause, each of which is itself a
// disjunction of the negated atoms — so the result is recomputed by
// cross-multiplying the negated-atom alternatives of every clause.
func negateClauses(clauses []clause) []clause {
	negatedPerClause := make([][]clause, 0, len(clauses))
	for _, cl := range clauses {
		var alts []clause
		for _, a := range cl {
			alts = append(alts, clause{negateAtom(a)})
		}
		negatedPerClause = append(negatedPerClause, alts)
	}

	result := []clause{{}}
	for _, alts := range negatedPerClause {
		var next []clause
		for _, existing := range result {
			for _, alt := range alts {
				merged := make(clause, 0, len(existing)+len(alt))
				merged = append(merged, existing...)
				merged = append(merged, alt...)
				next = append(next, merged)
			}
		}
		result = next
	}
	return result
}

func negateAtom(a atom) atom {
	switch a.kind {
	case atomConst:
		return atom{kind: atomConst, constVal: !a.constVal}
	case atomTruthy:
		return atom{kind: atomTruthy, path: a.path, negated: !a.negated}
	case atomCompare:
		op := "!="
		if a.op == "!=" {
			op = "=="
		}
		return atom{kind: atomCompare, path: a.path, op: op, value: a.value}
	}
	return a
}
