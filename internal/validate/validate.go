package validate

import (
	"reflect"

	"queryguard/internal/core"
	"queryguard/internal/dialectprofile"
	"queryguard/internal/queryplan"
)

// Validate checks plan against snapshot and profile in one clause-by-clause
// walk that applies the dialect, schema, semantic, and mutually recursive
// operand/predicate checks described in spec §4.2. It never mutates plan.
func Validate(plan *queryplan.Plan, snapshot *core.SchemaSnapshot, profile *dialectprofile.Profile) error {
	ctx := &Context{Snapshot: snapshot, Profile: profile, Scope: NewScopeStack()}
	return validatePlan(ctx, plan, false)
}

// validatePlan validates one QueryPlan node — WITH, FROM, JOIN, SELECT,
// WHERE, GROUP_BY, HAVING, WINDOW, ORDER_BY, LIMIT, OFFSET, SET_OP — in the
// scope given by ctx.Scope, pushing and popping exactly one frame for this
// plan's own FROM/JOIN/WITH-introduced names.
func validatePlan(ctx *Context, plan *queryplan.Plan, isSubquery bool) error {
	frame := ctx.Scope.Push()
	defer ctx.Scope.Pop()

	for _, entry := range plan.With {
		if !ctx.Profile.Has(dialectprofile.CapCTEs) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "ctes", "", "WITH clause requires the ctes capability")
		}
		if entry.Recursive && !ctx.Profile.Has(dialectprofile.CapSubqueries) {
			return core.NewValidationError("validate.recursion_not_enabled", "capability", "subqueries", "", "recursive WITH requires the subqueries capability")
		}
		if entry.Recursive && entry.Plan.SetOp == nil {
			return core.NewValidationError("validate.recursive_cte_missing_set_op", "with", entry.Name, "", "recursive WITH entry has no SET_OP anchor/step pair")
		}
		approxScope := deriveScope(entry.Plan)
		child := ctx.newIsolatedChild()
		if entry.Recursive {
			// the CTE's own name must resolve inside its own body (the
			// step branch self-references it) even across the isolation
			// boundary a SET_OP branch introduces.
			child.recursiveName = entry.Name
			child.recursiveScope = approxScope
		}
		if err := validatePlan(child, entry.Plan, true); err != nil {
			return err
		}
		frame[entry.Name] = approxScope
	}

	if err := validateFrom(ctx, frame, plan.From); err != nil {
		return err
	}

	if len(plan.Join) > 0 {
		if !ctx.Profile.Has(dialectprofile.CapJoins) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "joins", "", "JOIN clause requires the joins capability")
		}
		if len(plan.Join) > ctx.Profile.MaxJoinDepth() {
			return core.NewValidationError("validate.join_depth_exceeded", "join", "", "", "join count exceeds max_join_depth")
		}
	}
	for _, j := range plan.Join {
		if err := validateJoin(ctx, frame, j); err != nil {
			return err
		}
	}

	if err := validateSelect(ctx, plan.Select); err != nil {
		return err
	}

	if plan.Where != nil {
		if err := validatePredicate(ctx, plan.Where); err != nil {
			return err
		}
	}

	if len(plan.GroupBy) > 0 {
		if !ctx.Profile.Has(dialectprofile.CapAggregations) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "aggregations", "", "GROUP_BY requires the aggregations capability")
		}
		if err := validateOperandList(ctx, plan.GroupBy); err != nil {
			return err
		}
	}

	if plan.Having != nil {
		if len(plan.GroupBy) == 0 {
			return core.NewValidationError("validate.having_without_group_by", "clause", "HAVING", "", "HAVING requires a non-empty GROUP_BY")
		}
		if !ctx.Profile.Has(dialectprofile.CapAggregations) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "aggregations", "", "HAVING requires the aggregations capability")
		}
		if err := validatePredicate(ctx, plan.Having); err != nil {
			return err
		}
	}

	if len(plan.Window) > 0 {
		if !ctx.Profile.Has(dialectprofile.CapWindowFunctions) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "window_functions", "", "WINDOW requires the window_functions capability")
		}
		for _, w := range plan.Window {
			if err := validateOperandList(ctx, w.PartitionBy); err != nil {
				return err
			}
			if err := validateOrderItems(ctx, w.OrderBy); err != nil {
				return err
			}
		}
	}

	if len(plan.OrderBy) > 0 {
		if !ctx.Profile.Has(dialectprofile.CapJoins) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "joins", "", "ORDER_BY requires the joins capability")
		}
		if err := validateOrderItems(ctx, plan.OrderBy); err != nil {
			return err
		}
	}

	if err := validateLimitOffset(ctx, plan); err != nil {
		return err
	}

	if err := validateGroupByCoverage(plan); err != nil {
		return err
	}

	if plan.SetOp != nil {
		if !ctx.Profile.Has(dialectprofile.CapSetOperations) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "set_operations", "", "SET_OP requires the set_operations capability")
		}
		if err := validatePlan(ctx.newIsolatedChild(), plan.SetOp.Right, true); err != nil {
			return err
		}
		if len(plan.Select) != len(plan.SetOp.Right.Select) {
			return core.NewValidationError("validate.set_op_column_mismatch", "set_op", plan.SetOp.Op, "", "branches of a set operation must select the same number of columns")
		}
	}

	return nil
}

func validateFrom(ctx *Context, frame scopeFrame, from *queryplan.FromClause) error {
	if from.Subquery != nil {
		if !ctx.Profile.Has(dialectprofile.CapSubqueries) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "subqueries", "", "subquery FROM items require the subqueries capability")
		}
		if err := validatePlan(ctx.newIsolatedChild(), from.Subquery, true); err != nil {
			return err
		}
		frame[from.Alias] = deriveScope(from.Subquery)
		return nil
	}

	if ctx.recursiveName != "" && from.Table == ctx.recursiveName {
		frame[from.Table] = ctx.recursiveScope
		return nil
	}

	// a name put in this frame by one of this plan's own WITH entries
	if _, ok := frame[from.Table]; ok {
		return nil
	}

	table, ok := ctx.Snapshot.Table(from.Table)
	if !ok {
		return core.NewValidationError("validate.unknown_table", "table", from.Table, "", "table is not declared in the schema")
	}
	if !ctx.Profile.TableAllowed(from.Table) {
		return core.NewValidationError("validate.unknown_table", "table", from.Table, "", "table is not in the dialect profile's whitelist")
	}
	frame[from.Table] = tableScope{real: table}
	return nil
}

func validateJoin(ctx *Context, frame scopeFrame, j queryplan.JoinSpec) error {
	rel, ok := ctx.Snapshot.Relationship(j.Rel)
	if !ok {
		return core.NewValidationError("validate.unknown_relationship", "relationship", j.Rel, "key", "relationship key is not declared in the schema")
	}

	var introducedTableName string
	switch {
	case ctx.Scope.hasInFrame(frame, rel.FromTable):
		introducedTableName = rel.ToTable
	case ctx.Scope.hasInFrame(frame, rel.ToTable):
		introducedTableName = rel.FromTable
	default:
		return core.NewValidationError("validate.unknown_relationship", "relationship", j.Rel, "endpoint", "neither endpoint of the relationship is in scope")
	}

	table, ok := ctx.Snapshot.Table(introducedTableName)
	if !ok {
		return core.NewValidationError("validate.unknown_table", "table", introducedTableName, "", "relationship endpoint table is not declared in the schema")
	}
	if !ctx.Profile.TableAllowed(introducedTableName) {
		return core.NewValidationError("validate.unknown_table", "table", introducedTableName, "", "table is not in the dialect profile's whitelist")
	}

	name := introducedTableName
	if j.Alias != "" {
		name = j.Alias
	}
	frame[name] = tableScope{real: table}
	return nil
}

// hasInFrame reports whether name resolves anywhere in scope: first in
// the frame currently being populated, then through Resolve over the
// whole stack (which also holds that frame, since Push stored it there).
func (s *ScopeStack) hasInFrame(frame scopeFrame, name string) bool {
	if _, ok := frame[name]; ok {
		return true
	}
	_, ok := s.Resolve(name)
	return ok
}

func validateSelect(ctx *Context, items []queryplan.SelectItem) error {
	seenAlias := map[string]bool{}
	for _, item := range items {
		if item.Wildcard {
			continue
		}
		if err := validateOperand(ctx, item.Expr); err != nil {
			return err
		}
		if item.Alias != "" {
			if seenAlias[item.Alias] {
				return core.NewValidationError("validate.duplicate_alias", "alias", item.Alias, "", "alias is used more than once in SELECT")
			}
			seenAlias[item.Alias] = true
		}
	}
	return nil
}

func validateOrderItems(ctx *Context, items []queryplan.OrderItem) error {
	for _, item := range items {
		if err := validateOperand(ctx, item.Expr); err != nil {
			return err
		}
	}
	return nil
}

const int32Bound = 1 << 31

func validateLimitOffset(ctx *Context, plan *queryplan.Plan) error {
	if plan.Limit != nil && plan.Limit.Value != nil {
		if *plan.Limit.Value < 0 || *plan.Limit.Value >= int32Bound {
			return core.NewValidationError("validate.limit_out_of_range", "clause", "LIMIT", "", "LIMIT value must be in [0, 2^31)")
		}
	}
	if plan.Offset != nil {
		if plan.Offset.Value != nil && (*plan.Offset.Value < 0 || *plan.Offset.Value >= int32Bound) {
			return core.NewValidationError("validate.offset_out_of_range", "clause", "OFFSET", "", "OFFSET value must be in [0, 2^31)")
		}
		if !ctx.Profile.Has(dialectprofile.CapJoins) {
			return core.NewValidationError("validate.dialect_disabled", "capability", "joins", "", "OFFSET requires the joins capability")
		}
		if plan.Limit == nil && !ctx.Profile.Has(dialectprofile.CapOffsetWithoutLimit) {
			return core.NewValidationError("validate.offset_without_limit", "clause", "OFFSET", "", "OFFSET without LIMIT is not enabled for this dialect profile")
		}
	}
	return nil
}

// validateGroupByCoverage enforces that every non-aggregate operand
// appearing in SELECT or ORDER_BY, when GROUP_BY is present, also appears
// in GROUP_BY.
func validateGroupByCoverage(plan *queryplan.Plan) error {
	if len(plan.GroupBy) == 0 {
		return nil
	}
	check := func(op queryplan.Operand) error {
		if containsAggregate(op) {
			return nil
		}
		if operandIn(op, plan.GroupBy) {
			return nil
		}
		return core.NewValidationError("validate.group_by_coverage", "operand", "", "", "non-aggregate expression must appear in GROUP_BY")
	}
	for _, item := range plan.Select {
		if item.Wildcard {
			continue
		}
		if err := check(item.Expr); err != nil {
			return err
		}
	}
	for _, item := range plan.OrderBy {
		if err := check(item.Expr); err != nil {
			return err
		}
	}
	return nil
}

func containsAggregate(op queryplan.Operand) bool {
	switch o := op.(type) {
	case queryplan.FuncOperand:
		if isAggregateFunc(o.Func) {
			return true
		}
		for _, arg := range o.Args {
			if containsAggregate(arg) {
				return true
			}
		}
	case queryplan.CaseOperand:
		for _, w := range o.When {
			if containsAggregate(w.Then) {
				return true
			}
		}
		if o.Else != nil {
			return containsAggregate(o.Else)
		}
	}
	return false
}

func operandIn(op queryplan.Operand, list []queryplan.Operand) bool {
	for _, candidate := range list {
		if reflect.DeepEqual(op, candidate) {
			return true
		}
	}
	return false
}

// deriveScope computes the tableScope a plan exposes to whoever selects
// from it as a CTE, a derived table, or a set-op branch. A wildcard
// SELECT exposes every column name, since the true projection can't be
// known without full type inference.
func deriveScope(plan *queryplan.Plan) tableScope {
	columns := map[string]bool{}
	for _, item := range plan.Select {
		if item.Wildcard {
			return tableScope{wildcard: true}
		}
		name := item.Alias
		if name == "" {
			if col, ok := item.Expr.(queryplan.ColOperand); ok {
				name = col.Column
			}
		}
		if name != "" {
			columns[name] = true
		}
	}
	return tableScope{columns: columns}
}
