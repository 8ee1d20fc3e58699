package validate

import (
	"queryguard/internal/core"
	"queryguard/internal/dialectprofile"
	"queryguard/internal/queryplan"
)

func validatePredicate(ctx *Context, pred queryplan.Predicate) error {
	switch p := pred.(type) {
	case queryplan.BinaryPredicate:
		if err := validateOperand(ctx, p.Left); err != nil {
			return err
		}
		return validateOperand(ctx, p.Right)

	case queryplan.UnaryPredicate:
		return validateOperand(ctx, p.Operand)

	case queryplan.BetweenPredicate:
		for _, op := range []queryplan.Operand{p.Operand, p.Low, p.High} {
			if err := validateOperand(ctx, op); err != nil {
				return err
			}
		}
		return nil

	case queryplan.InPredicate:
		if err := validateOperand(ctx, p.Left); err != nil {
			return err
		}
		if p.Subquery != nil {
			if !ctx.Profile.Has(dialectprofile.CapSubqueries) {
				return core.NewValidationError("validate.recursion_not_enabled", "capability", "subqueries", "", "subqueries are not enabled for this dialect profile")
			}
			return validatePlan(ctx.newCorrelatedChild(), p.Subquery, true)
		}
		return validateOperandList(ctx, p.List)

	case queryplan.LogicalPredicate:
		for _, sub := range p.Predicates {
			if err := validatePredicate(ctx, sub); err != nil {
				return err
			}
		}
		return nil

	case queryplan.NotPredicate:
		return validatePredicate(ctx, p.Predicate)

	case queryplan.ExistsPredicate:
		if !ctx.Profile.Has(dialectprofile.CapSubqueries) {
			return core.NewValidationError("validate.recursion_not_enabled", "capability", "subqueries", "", "subqueries are not enabled for this dialect profile")
		}
		return validatePlan(ctx.newCorrelatedChild(), p.Subquery, true)

	case queryplan.ExtensionPredicate:
		return validateOperandList(ctx, p.Args)

	default:
		return core.NewValidationError("validate.internal", "predicate", "", "", "unrecognized predicate type")
	}
}
