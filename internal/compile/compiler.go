// Package compile renders a validated, policy-enforced QueryPlan into
// parameterized SQL for a target dialect. It reads the schema only to
// resolve JOIN relationship keys to their columns and never re-checks
// policy — by the time a plan reaches here, validate and policy have
// already proven it well-formed and compliant.
package compile

import (
	"queryguard/internal/core"
	"queryguard/internal/queryplan"
)

// ArgBuilder renders a single operand to SQL text, binding a fresh
// parameter if the operand is a literal value. OperatorRegistry handlers
// and Compiler.BuildFuncCall both receive one so they can recurse into
// their own arguments without reimplementing operand rendering.
type ArgBuilder func(op queryplan.Operand) (string, error)

// Compiler is the dialect-specific rendering strategy a Builder is
// configured with. Each target (postgres, sqlite, mysql) provides its own
// implementation; the visitor in build.go is dialect-agnostic and calls
// into these methods wherever dialect conventions differ.
type Compiler interface {
	// DialectName returns the compilation target identifier ("postgres",
	// "sqlite", "mysql").
	DialectName() string

	// QuoteIdentifier quotes a single unqualified identifier (table,
	// column, alias, CTE name) per the dialect's quoting convention.
	QuoteIdentifier(name string) string

	// ParamPlaceholder returns the placeholder text the driver expects for
	// a logical parameter name, per spec §6.3.
	ParamPlaceholder(name string) string

	// LikeOperator returns the SQL operator to emit for a LIKE/ILIKE
	// predicate, remapping ILIKE on dialects that lack it.
	LikeOperator(op string) (sqlOp string, lowerBoth bool)

	// BuildFuncCall renders a scalar function call. args are the raw,
	// unrendered operand tree so an override can inspect a literal
	// argument (e.g. DATE_PART's part name) instead of letting it bind as
	// a parameter; build renders any argument the normal way. The default
	// behavior for every built-in function is "NAME(build(arg0), build(arg1), ...)".
	BuildFuncCall(name string, args []queryplan.Operand, build ArgBuilder) (string, error)
}

// CompiledSQL is the result of a successful compile: the SQL text, the
// parameters the compiler itself bound (value operands and defaulted
// LIMIT/OFFSET), and the set of parameter names the caller must still
// supply before execution.
type CompiledSQL struct {
	SQL            string
	Params         map[string]any
	RequiredParams map[string]bool
}

// MergeRuntimeParams returns the union of the compiler-bound params and the
// caller-supplied runtime params. It is total when runtime contains every
// name in RequiredParams and none of its keys collide with a compiler-bound
// name; otherwise it fails with a CompilationError.
func (c *CompiledSQL) MergeRuntimeParams(runtime map[string]any) (map[string]any, error) {
	for name := range c.RequiredParams {
		if _, ok := runtime[name]; !ok {
			return nil, core.NewCompilationError("runtime.missing_param",
				"required parameter \""+name+"\" was not supplied")
		}
	}

	merged := make(map[string]any, len(c.Params)+len(runtime))
	for k, v := range c.Params {
		merged[k] = v
	}
	for k, v := range runtime {
		if _, collides := c.Params[k]; collides {
			return nil, core.NewCompilationError("runtime.param_collision",
				"runtime parameter \""+k+"\" collides with a compiler-bound parameter")
		}
		merged[k] = v
	}
	return merged, nil
}
