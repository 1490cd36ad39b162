package dsl

// Effect is the outcome a Policy contributes when its scope and
// condition match a request.
type Effect int

const (
	EffectPermit Effect = iota
	EffectForbid
)

// ScopeKind discriminates the three forms a scope clause can take.
type ScopeKind int

const (
	// ScopeAny matches any principal/action/resource (the bare "principal" form).
	ScopeAny ScopeKind = iota
	// ScopeEq requires exact identity with a literal entity UID.
	ScopeEq
	// ScopeIn requires membership in (or identity with) a literal entity UID.
	ScopeIn
	// ScopeIs requires the slot's runtime type to match a named type.
	ScopeIs
)

// EntityUID is a literal entity reference, Service::Type::"id".
type EntityUID struct {
	Service string
	Type    string
	ID      string
}

// Scope constrains one of a policy's principal/action/resource slots.
type Scope struct {
	Kind      ScopeKind
	EntityUID EntityUID // meaningful when Kind is ScopeEq or ScopeIn
	TypeName  string    // meaningful when Kind is ScopeIs
}

// ConditionKind discriminates a when-clause from an unless-clause.
type ConditionKind int

const (
	ConditionWhen ConditionKind = iota
	ConditionUnless
)

// Condition is a policy's optional boolean guard.
type Condition struct {
	Kind ConditionKind
	Expr Expr
}

// Policy is one parsed permit/forbid statement.
type Policy struct {
	ID        string
	Effect    Effect
	Principal Scope
	Action    Scope
	Resource  Scope
	Condition *Condition // nil if the policy has no when/unless clause
}

// Expr is the interface implemented by every condition-expression AST node.
type Expr interface {
	exprNode()
}

// Path is a dotted attribute access rooted at one of
// principal/action/resource/context, e.g. principal.department.
type Path struct {
	Segments []string
}

func (Path) exprNode() {}

// LitKind discriminates the Lit sum type.
type LitKind int

const (
	LitBool LitKind = iota
	LitLong
	LitString
)

// Lit is a literal boolean, integer, or string value.
type Lit struct {
	Kind LitKind
	Bool bool
	Long int64
	Str  string
}

func (Lit) exprNode() {}

// EntityUIDLit is a literal entity reference used within an expression
// (as opposed to a scope clause), e.g. resource.owner == IAM::User::"alice".
type EntityUIDLit struct {
	UID EntityUID
}

func (EntityUIDLit) exprNode() {}

// BinaryOp combines two expressions with ==, !=, && or ||.
type BinaryOp struct {
	Op    string
	Left  Expr
	Right Expr
}

func (BinaryOp) exprNode() {}

// UnaryOp negates an expression with !.
type UnaryOp struct {
	Op   string
	Expr Expr
}

func (UnaryOp) exprNode() {}
