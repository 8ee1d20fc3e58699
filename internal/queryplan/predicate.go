package queryplan

// Predicate is the boolean-expression tree. Like Operand, its marker
// method is unexported so the concrete set is closed to this package.
type Predicate interface {
	isPredicate()
}

// Comparison operator names, usable as BinaryPredicate.Op.
const (
	OpEQ  = "EQ"
	OpNEQ = "NEQ"
	OpLT  = "LT"
	OpLTE = "LTE"
	OpGT  = "GT"
	OpGTE = "GTE"

	OpLike  = "LIKE"
	OpILike = "ILIKE"
)

// BinaryPredicate is a two-operand comparison: EQ, NEQ, LT, LTE, GT, GTE,
// LIKE, or ILIKE.
type BinaryPredicate struct {
	Op    string
	Left  Operand
	Right Operand
}

func (BinaryPredicate) isPredicate() {}

// Null-check operator names, usable as UnaryPredicate.Op.
const (
	OpIsNull    = "IS_NULL"
	OpIsNotNull = "IS_NOT_NULL"
)

// UnaryPredicate is a single-operand check: IS_NULL or IS_NOT_NULL.
type UnaryPredicate struct {
	Op      string
	Operand Operand
}

func (UnaryPredicate) isPredicate() {}

// Set-membership operator names, usable as InPredicate.Op.
const (
	OpIn    = "IN"
	OpNotIn = "NOT_IN"
)

// InPredicate tests a left operand against either a literal list of
// operands or a subquery's result set. Exactly one of List or Subquery is
// set.
type InPredicate struct {
	Op       string
	Left     Operand
	List     []Operand
	Subquery *Plan
}

func (InPredicate) isPredicate() {}

// BetweenPredicate tests an operand against an inclusive [Low, High] range.
type BetweenPredicate struct {
	Operand Operand
	Low     Operand
	High    Operand
}

func (BetweenPredicate) isPredicate() {}

// Logical operator names, usable as LogicalPredicate.Op.
const (
	OpAnd = "AND"
	OpOr  = "OR"
)

// LogicalPredicate is an n-ary AND or OR over two or more sub-predicates.
type LogicalPredicate struct {
	Op         string
	Predicates []Predicate
}

func (LogicalPredicate) isPredicate() {}

// NotPredicate negates a single sub-predicate.
type NotPredicate struct {
	Predicate Predicate
}

func (NotPredicate) isPredicate() {}

// Existential operator names, usable as ExistsPredicate.Op.
const (
	OpExists    = "EXISTS"
	OpNotExists = "NOT_EXISTS"
)

// ExistsPredicate tests whether a correlated subquery returns any rows.
type ExistsPredicate struct {
	Op       string
	Subquery *Plan
}

func (ExistsPredicate) isPredicate() {}

// ExtensionPredicate is any single-key predicate operator not built into
// this package. The parser accepts any operator name here without
// checking arity; validate checks only its operands, and compile fails
// with compile.unsupported_operator when no renderer is registered for Op
// (any arity check is left to the registered renderer).
type ExtensionPredicate struct {
	Op   string
	Args []Operand
}

func (ExtensionPredicate) isPredicate() {}
