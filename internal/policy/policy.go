// Package policy enforces tenant/ABAC rules on a validated QueryPlan: a
// column deny-list, required parameter bindings that must survive even
// under disjunction, and default row limits. It runs after validate and
// before compile, and never shares a mutated node with its input plan.
package policy

import (
	"queryguard/internal/core"
	"queryguard/internal/queryplan"
)

// TablePolicy is the per-table policy: columns whose values are pinned to
// a runtime parameter, and columns that may never be referenced at all.
type TablePolicy struct {
	ParamBoundColumns map[string]string // column name -> parameter name
	DeniedColumns     map[string]bool
}

// Config is the full policy configuration passed to Apply.
type Config struct {
	InjectMissingParams bool
	DefaultLimit        *int
	Tables              map[string]TablePolicy
}

// requiredBinding is one (table, column) -> param binding currently in
// force because the table is in scope and the policy requires it.
type requiredBinding struct {
	table  string
	column string
	param  string
}

// Apply runs deny-list enforcement, required-parameter injection, and
// OR-bypass hardening against plan and every plan nested inside it (WITH
// entries, FROM subqueries, IN/EXISTS subqueries, SET_OP branches), then
// LIMIT defaulting on the outermost plan only, returning the (possibly
// rebuilt) plan and the union of parameter names the caller must supply
// at compile time. plan is never mutated in place: every touched node,
// at any nesting depth, is rebuilt fresh. snapshot resolves JOIN
// relationship keys to the table names they introduce into scope.
func Apply(plan *queryplan.Plan, snapshot *core.SchemaSnapshot, cfg Config) (*queryplan.Plan, map[string]bool, error) {
	return applyToPlan(plan, snapshot, cfg, true)
}

// applyToPlan enforces policy against one plan node in isolation — its own
// FROM/JOIN scope, its own SELECT/WHERE/GROUP_BY/HAVING/ORDER_BY/WINDOW
// column references, its own required-binding injection and OR-bypass
// check — then recurses into every nested plan this node carries (WITH
// entries, a FROM subquery, IN/EXISTS subqueries reachable from WHERE or
// HAVING, and a SET_OP right branch), each enforced against its own local
// scope exactly as validate.validatePlan re-scopes per nested plan.
// required_params is the union across this plan and everything nested
// inside it. isTop gates LIMIT defaulting, which only ever applies to the
// outermost plan of a request.
func applyToPlan(plan *queryplan.Plan, snapshot *core.SchemaSnapshot, cfg Config, isTop bool) (*queryplan.Plan, map[string]bool, error) {
	requiredParams := map[string]bool{}

	newWith := plan.With
	if len(plan.With) > 0 {
		newWith = make([]queryplan.WithEntry, len(plan.With))
		for i, entry := range plan.With {
			nested, req, err := applyToPlan(entry.Plan, snapshot, cfg, false)
			if err != nil {
				return nil, nil, err
			}
			newWith[i] = queryplan.WithEntry{Name: entry.Name, Plan: nested, Recursive: entry.Recursive}
			mergeParamSet(requiredParams, req)
		}
	}

	newFrom := plan.From
	if plan.From != nil && plan.From.Subquery != nil {
		nested, req, err := applyToPlan(plan.From.Subquery, snapshot, cfg, false)
		if err != nil {
			return nil, nil, err
		}
		newFrom = &queryplan.FromClause{Subquery: nested, Alias: plan.From.Alias}
		mergeParamSet(requiredParams, req)
	}

	scope := collectTablesInScope(plan, snapshot)

	if err := checkDeniedColumns(plan, cfg, scope); err != nil {
		return nil, nil, err
	}

	required := requiredBindingsFor(cfg, scope)
	for _, b := range required {
		requiredParams[b.param] = true
	}

	rewrittenWhere, req, err := rewritePredicateSubqueries(plan.Where, snapshot, cfg)
	if err != nil {
		return nil, nil, err
	}
	mergeParamSet(requiredParams, req)

	newHaving, req, err := rewritePredicateSubqueries(plan.Having, snapshot, cfg)
	if err != nil {
		return nil, nil, err
	}
	mergeParamSet(requiredParams, req)

	newWhere, err := injectRequiredParams(rewrittenWhere, required, cfg.InjectMissingParams)
	if err != nil {
		return nil, nil, err
	}

	if err := checkORBypass(newWhere, required); err != nil {
		return nil, nil, err
	}

	newSetOp := plan.SetOp
	if plan.SetOp != nil {
		nested, req, err := applyToPlan(plan.SetOp.Right, snapshot, cfg, false)
		if err != nil {
			return nil, nil, err
		}
		newSetOp = &queryplan.SetOpClause{Op: plan.SetOp.Op, Right: nested}
		mergeParamSet(requiredParams, req)
	}

	out := shallowCopyPlan(plan)
	out.With = newWith
	out.From = newFrom
	out.Where = newWhere
	out.Having = newHaving
	out.SetOp = newSetOp

	if isTop && out.Limit == nil && cfg.DefaultLimit != nil {
		v := *cfg.DefaultLimit
		out.Limit = &queryplan.LimitClause{Value: &v}
	}

	return out, requiredParams, nil
}

func mergeParamSet(dst, src map[string]bool) {
	for k := range src {
		dst[k] = true
	}
}

func shallowCopyPlan(plan *queryplan.Plan) *queryplan.Plan {
	cp := *plan
	return &cp
}

// collectTablesInScope returns every table name reachable from plan's own
// FROM/JOIN. It is deliberately not recursive: applyToPlan calls it once
// per nested plan node, each with its own local scope, mirroring the
// per-plan scope frame validate.validatePlan pushes for every WITH entry,
// FROM subquery, IN/EXISTS subquery, and SET_OP branch. Both endpoints of
// a JOINed relationship are included: by the time Apply runs, validate
// has already confirmed one endpoint was already in scope, so adding both
// is exactly "main FROM, any JOINed table".
func collectTablesInScope(plan *queryplan.Plan, snapshot *core.SchemaSnapshot) map[string]bool {
	scope := map[string]bool{}
	if plan.From != nil && plan.From.Table != "" {
		scope[plan.From.Table] = true
	}
	for _, j := range plan.Join {
		rel, ok := snapshot.Relationship(j.Rel)
		if !ok {
			continue
		}
		scope[rel.FromTable] = true
		scope[rel.ToTable] = true
	}
	return scope
}

func requiredBindingsFor(cfg Config, scope map[string]bool) []requiredBinding {
	var out []requiredBinding
	for table := range scope {
		tp, ok := cfg.Tables[table]
		if !ok {
			continue
		}
		for col, param := range tp.ParamBoundColumns {
			out = append(out, requiredBinding{table: table, column: col, param: param})
		}
	}
	return out
}

func checkDeniedColumns(plan *queryplan.Plan, cfg Config, scope map[string]bool) error {
	var firstErr error
	walkPlanColumns(plan, func(table, column string) {
		if firstErr != nil {
			return
		}
		if !scope[table] {
			return
		}
		tp, ok := cfg.Tables[table]
		if !ok {
			return
		}
		if tp.DeniedColumns[column] {
			firstErr = core.NewValidationError("policy.column_denied", "table", table, column,
				"column is denied by policy")
		}
	})
	return firstErr
}

// walkPlanColumns visits every {col: "T.C"} reference in plan's own
// SELECT/WHERE/GROUP_BY/HAVING/ORDER_BY/WINDOW clauses, not descending
// into a nested plan's own clauses (a WITH entry's plan, a FROM
// subquery, an IN/EXISTS subquery, a SET_OP branch) — each of those is
// policy-checked independently by its own applyToPlan call, against its
// own local scope.
func walkPlanColumns(plan *queryplan.Plan, visit func(table, column string)) {
	for _, item := range plan.Select {
		if !item.Wildcard {
			walkOperandColumns(item.Expr, visit)
		}
	}
	if plan.Where != nil {
		walkPredicateColumns(plan.Where, visit)
	}
	for _, op := range plan.GroupBy {
		walkOperandColumns(op, visit)
	}
	if plan.Having != nil {
		walkPredicateColumns(plan.Having, visit)
	}
	for _, item := range plan.OrderBy {
		walkOperandColumns(item.Expr, visit)
	}
	for _, w := range plan.Window {
		for _, op := range w.PartitionBy {
			walkOperandColumns(op, visit)
		}
		for _, item := range w.OrderBy {
			walkOperandColumns(item.Expr, visit)
		}
	}
}

func walkOperandColumns(op queryplan.Operand, visit func(table, column string)) {
	switch o := op.(type) {
	case queryplan.ColOperand:
		visit(o.Table, o.Column)
	case queryplan.FuncOperand:
		for _, arg := range o.Args {
			walkOperandColumns(arg, visit)
		}
	case queryplan.CaseOperand:
		for _, w := range o.When {
			walkPredicateColumns(w.Cond, visit)
			walkOperandColumns(w.Then, visit)
		}
		if o.Else != nil {
			walkOperandColumns(o.Else, visit)
		}
	}
}

func walkPredicateColumns(pred queryplan.Predicate, visit func(table, column string)) {
	switch p := pred.(type) {
	case queryplan.BinaryPredicate:
		walkOperandColumns(p.Left, visit)
		walkOperandColumns(p.Right, visit)
	case queryplan.UnaryPredicate:
		walkOperandColumns(p.Operand, visit)
	case queryplan.BetweenPredicate:
		walkOperandColumns(p.Operand, visit)
		walkOperandColumns(p.Low, visit)
		walkOperandColumns(p.High, visit)
	case queryplan.InPredicate:
		walkOperandColumns(p.Left, visit)
		for _, op := range p.List {
			walkOperandColumns(op, visit)
		}
	case queryplan.LogicalPredicate:
		for _, sub := range p.Predicates {
			walkPredicateColumns(sub, visit)
		}
	case queryplan.NotPredicate:
		walkPredicateColumns(p.Predicate, visit)
	case queryplan.ExtensionPredicate:
		for _, op := range p.Args {
			walkOperandColumns(op, visit)
		}
	}
}
