package compile

import (
	"fmt"
	"sync"

	"queryguard/internal/core"
	"queryguard/internal/queryplan"
)

// OperatorFunc renders one predicate operator given its raw operand
// arguments and a builder callback for rendering any one of them. It is
// dialect-agnostic: operators needing dialect-specific rendering (LIKE/
// ILIKE, scalar function calls) go through Compiler methods instead, since
// this registry is shared process-wide across every dialect.
type OperatorFunc func(op string, args []queryplan.Operand, build ArgBuilder) (string, error)

var (
	operatorMu       sync.RWMutex
	operatorRegistry = map[string]OperatorFunc{}
)

// RegisterOperator adds or overlays a predicate operator's rendering
// function. Built-in comparison operators are registered by this package's
// init(); callers may overlay additional operator names (ExtensionPredicate
// tags the parser accepted without arity checking) before first compile.
func RegisterOperator(op string, fn OperatorFunc) {
	operatorMu.Lock()
	defer operatorMu.Unlock()
	operatorRegistry[op] = fn
}

// lookupOperator returns the registered renderer for op, if any.
func lookupOperator(op string) (OperatorFunc, bool) {
	operatorMu.RLock()
	defer operatorMu.RUnlock()
	fn, ok := operatorRegistry[op]
	return fn, ok
}

// resetOperatorRegistry replaces the registry with the given map. Intended
// for testing only.
func resetOperatorRegistry(r map[string]OperatorFunc) {
	operatorMu.Lock()
	defer operatorMu.Unlock()
	operatorRegistry = r
}

// snapshotOperatorRegistry returns a shallow copy of the current registry.
// Intended for testing only.
func snapshotOperatorRegistry() map[string]OperatorFunc {
	operatorMu.RLock()
	defer operatorMu.RUnlock()
	snap := make(map[string]OperatorFunc, len(operatorRegistry))
	for k, v := range operatorRegistry {
		snap[k] = v
	}
	return snap
}

func binaryComparison(sqlOp string) OperatorFunc {
	return func(op string, args []queryplan.Operand, build ArgBuilder) (string, error) {
		if len(args) != 2 {
			return "", core.NewCompilationError("compile.internal",
				fmt.Sprintf("operator %q requires exactly 2 operands, got %d", op, len(args)))
		}
		left, err := build(args[0])
		if err != nil {
			return "", err
		}
		right, err := build(args[1])
		if err != nil {
			return "", err
		}
		return left + " " + sqlOp + " " + right, nil
	}
}

func unaryNullCheck(sqlSuffix string) OperatorFunc {
	return func(op string, args []queryplan.Operand, build ArgBuilder) (string, error) {
		if len(args) != 1 {
			return "", core.NewCompilationError("compile.internal",
				fmt.Sprintf("operator %q requires exactly 1 operand, got %d", op, len(args)))
		}
		operand, err := build(args[0])
		if err != nil {
			return "", err
		}
		return operand + " " + sqlSuffix, nil
	}
}

func between(op string, args []queryplan.Operand, build ArgBuilder) (string, error) {
	if len(args) != 3 {
		return "", core.NewCompilationError("compile.internal",
			fmt.Sprintf("operator %q requires exactly 3 operands, got %d", op, len(args)))
	}
	operand, err := build(args[0])
	if err != nil {
		return "", err
	}
	low, err := build(args[1])
	if err != nil {
		return "", err
	}
	high, err := build(args[2])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", operand, low, high), nil
}

func init() {
	RegisterOperator(queryplan.OpEQ, binaryComparison("="))
	RegisterOperator(queryplan.OpNEQ, binaryComparison("<>"))
	RegisterOperator(queryplan.OpLT, binaryComparison("<"))
	RegisterOperator(queryplan.OpLTE, binaryComparison("<="))
	RegisterOperator(queryplan.OpGT, binaryComparison(">"))
	RegisterOperator(queryplan.OpGTE, binaryComparison(">="))
	RegisterOperator(queryplan.OpIsNull, unaryNullCheck("IS NULL"))
	RegisterOperator(queryplan.OpIsNotNull, unaryNullCheck("IS NOT NULL"))
	RegisterOperator("BETWEEN", between)
}
