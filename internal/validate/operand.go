package validate

import (
	"queryguard/internal/core"
	"queryguard/internal/queryplan"
)

// validateOperand and validatePredicate (predicate.go) are mutually
// recursive: a case operand descends into predicates, and a predicate's
// operand positions descend back here.
func validateOperand(ctx *Context, op queryplan.Operand) error {
	switch o := op.(type) {
	case queryplan.ColOperand:
		return validateColumnRef(ctx, o.Table, o.Column)

	case queryplan.ValueOperand:
		return nil

	case queryplan.ParamOperand:
		return nil

	case queryplan.FuncOperand:
		if !isBuiltinFunc(o.Func) && !ctx.Profile.FunctionAllowed(o.Func) {
			return core.NewValidationError("validate.bad_function", "function", o.Func, "", "function is not in the dialect allowlist")
		}
		for _, arg := range o.Args {
			if err := validateOperand(ctx, arg); err != nil {
				return err
			}
		}
		return nil

	case queryplan.CaseOperand:
		for _, w := range o.When {
			if err := validatePredicate(ctx, w.Cond); err != nil {
				return err
			}
			if err := validateOperand(ctx, w.Then); err != nil {
				return err
			}
		}
		if o.Else != nil {
			return validateOperand(ctx, o.Else)
		}
		return nil

	case queryplan.SubqueryOperand:
		return core.NewValidationError("validate.scalar_subquery_unsupported", "operand", "", "", "scalar subquery in a comparison operand is not supported")

	default:
		return core.NewValidationError("validate.internal", "operand", "", "", "unrecognized operand type")
	}
}

func validateColumnRef(ctx *Context, table, column string) error {
	ts, ok := ctx.Scope.Resolve(table)
	if !ok {
		return core.NewValidationError("validate.unknown_table", "table", table, "", "table is not in scope")
	}
	if !ts.hasColumn(column) {
		return core.NewValidationError("validate.unknown_column", "column", table+"."+column, "", "column does not exist on table")
	}
	return nil
}

func validateOperandList(ctx *Context, ops []queryplan.Operand) error {
	for _, op := range ops {
		if err := validateOperand(ctx, op); err != nil {
			return err
		}
	}
	return nil
}
