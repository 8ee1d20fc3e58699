package compile

import (
	"fmt"
	"strings"

	"queryguard/internal/core"
	"queryguard/internal/dialectprofile"
	"queryguard/internal/queryplan"
)

// Compile renders plan to parameterized SQL for profile's target dialect.
// snapshot resolves JOIN relationship keys to the table/column pairs their
// ON clause needs. requiredParams is carried through from policy.Apply
// unchanged into the returned CompiledSQL.
func Compile(plan *queryplan.Plan, snapshot *core.SchemaSnapshot, profile *dialectprofile.Profile, requiredParams map[string]bool) (*CompiledSQL, error) {
	compiler, err := Factory(profile.Target())
	if err != nil {
		return nil, core.NewCompilationError("compile.internal", err.Error())
	}

	b := &builder{compiler: compiler, snapshot: snapshot, params: map[string]any{}}
	sql, err := b.renderPlan(plan)
	if err != nil {
		return nil, err
	}

	required := make(map[string]bool, len(requiredParams))
	for k, v := range requiredParams {
		required[k] = v
	}

	return &CompiledSQL{SQL: sql, Params: b.params, RequiredParams: required}, nil
}

// builder holds the per-call state described in spec §4.4: a parameter
// counter, the output it accumulates, and the params map it owns until
// Compile returns it to the caller. Nothing here is shared across calls.
type builder struct {
	compiler Compiler
	snapshot *core.SchemaSnapshot
	params   map[string]any
	counter  int
}

func (b *builder) quote(name string) string {
	return b.compiler.QuoteIdentifier(name)
}

func (b *builder) qualifiedColumn(table, column string) string {
	return b.quote(table) + "." + b.quote(column)
}

// bindValue allocates a fresh param_{n} name, records the binding, and
// returns the name (not yet rendered as a placeholder).
func (b *builder) bindValue(v any) string {
	name := fmt.Sprintf("param_%d", b.counter)
	b.counter++
	b.params[name] = v
	return name
}

// renderPlan emits one SELECT statement in spec §4.4's clause order: WITH,
// SELECT, FROM, JOINs, WHERE, GROUP BY, HAVING, WINDOW, SET_OP (recursive
// on the right), ORDER BY, LIMIT, OFFSET.
func (b *builder) renderPlan(plan *queryplan.Plan) (string, error) {
	var sb strings.Builder

	if len(plan.With) > 0 {
		withSQL, err := b.renderWith(plan.With)
		if err != nil {
			return "", err
		}
		sb.WriteString(withSQL)
		sb.WriteString(" ")
	}

	selectSQL, err := b.renderSelect(plan.Select)
	if err != nil {
		return "", err
	}
	sb.WriteString(selectSQL)

	scopeRef := map[string]string{}
	fromSQL, err := b.renderFrom(plan.From, scopeRef)
	if err != nil {
		return "", err
	}
	sb.WriteString(" FROM ")
	sb.WriteString(fromSQL)

	for _, j := range plan.Join {
		joinSQL, err := b.renderJoin(j, scopeRef)
		if err != nil {
			return "", err
		}
		sb.WriteString(joinSQL)
	}

	if plan.Where != nil {
		whereSQL, err := b.renderPredicate(plan.Where)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
	}

	if len(plan.GroupBy) > 0 {
		items := make([]string, len(plan.GroupBy))
		for i, op := range plan.GroupBy {
			s, err := b.renderOperand(op)
			if err != nil {
				return "", err
			}
			items[i] = s
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(items, ", "))
	}

	if plan.Having != nil {
		havingSQL, err := b.renderPredicate(plan.Having)
		if err != nil {
			return "", err
		}
		sb.WriteString(" HAVING ")
		sb.WriteString(havingSQL)
	}

	if len(plan.Window) > 0 {
		windowSQL, err := b.renderWindows(plan.Window)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WINDOW ")
		sb.WriteString(windowSQL)
	}

	if plan.SetOp != nil {
		rightSQL, err := b.renderPlan(plan.SetOp.Right)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ")
		sb.WriteString(setOpKeyword(plan.SetOp.Op))
		sb.WriteString(" ")
		sb.WriteString(rightSQL)
	}

	if len(plan.OrderBy) > 0 {
		orderSQL, err := b.renderOrderBy(plan.OrderBy)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderSQL)
	}

	if plan.Limit != nil {
		limitSQL, err := b.renderLimitOffset(plan.Limit.Value, plan.Limit.Param)
		if err != nil {
			return "", err
		}
		sb.WriteString(" LIMIT ")
		sb.WriteString(limitSQL)
	}

	if plan.Offset != nil {
		offsetSQL, err := b.renderLimitOffset(plan.Offset.Value, plan.Offset.Param)
		if err != nil {
			return "", err
		}
		sb.WriteString(" OFFSET ")
		sb.WriteString(offsetSQL)
	}

	return sb.String(), nil
}

func (b *builder) renderLimitOffset(value *int, param string) (string, error) {
	if param != "" {
		return b.compiler.ParamPlaceholder(param), nil
	}
	name := b.bindValue(*value)
	return b.compiler.ParamPlaceholder(name), nil
}

func (b *builder) renderSelect(items []queryplan.SelectItem) (string, error) {
	parts := make([]string, len(items))
	for i, item := range items {
		if item.Wildcard {
			parts[i] = "*"
			continue
		}
		expr, err := b.renderOperand(item.Expr)
		if err != nil {
			return "", err
		}
		if item.Alias != "" {
			expr += " AS " + b.quote(item.Alias)
		}
		parts[i] = expr
	}
	return "SELECT " + strings.Join(parts, ", "), nil
}

// renderFrom emits the FROM clause and records the table/alias's reference
// name in scopeRef so renderJoin can resolve ON-clause qualifiers.
func (b *builder) renderFrom(from *queryplan.FromClause, scopeRef map[string]string) (string, error) {
	if from.Subquery != nil {
		sub, err := b.renderPlan(from.Subquery)
		if err != nil {
			return "", err
		}
		scopeRef[from.Alias] = from.Alias
		return "(" + sub + ") AS " + b.quote(from.Alias), nil
	}

	ref := from.Table
	sql := b.quote(from.Table)
	if from.Alias != "" {
		ref = from.Alias
		sql += " AS " + b.quote(from.Alias)
	}
	scopeRef[from.Table] = ref
	return sql, nil
}

func joinKeyword(t string) string {
	return t + " JOIN"
}

// renderJoin resolves j's relationship against the schema snapshot, picks
// whichever endpoint is not yet in scopeRef as the table being introduced,
// and emits "<TYPE> JOIN <table> [AS alias] ON <other>.<col> = <new>.<col>".
func (b *builder) renderJoin(j queryplan.JoinSpec, scopeRef map[string]string) (string, error) {
	rel, ok := b.snapshot.Relationship(j.Rel)
	if !ok {
		return "", core.NewCompilationError("compile.internal",
			fmt.Sprintf("relationship %q not found in schema snapshot", j.Rel))
	}

	var newTable, newCol, otherRef, otherCol string
	switch {
	case scopeRef[rel.FromTable] != "":
		newTable, newCol = rel.ToTable, rel.ToColumn
		otherRef, otherCol = scopeRef[rel.FromTable], rel.FromColumn
	case scopeRef[rel.ToTable] != "":
		newTable, newCol = rel.FromTable, rel.FromColumn
		otherRef, otherCol = scopeRef[rel.ToTable], rel.ToColumn
	default:
		return "", core.NewCompilationError("compile.internal",
			fmt.Sprintf("neither endpoint of relationship %q is in scope", j.Rel))
	}

	ref := newTable
	sql := fmt.Sprintf(" %s %s", joinKeyword(j.Type), b.quote(newTable))
	if j.Alias != "" {
		ref = j.Alias
		sql += " AS " + b.quote(j.Alias)
	}
	scopeRef[newTable] = ref

	sql += fmt.Sprintf(" ON %s.%s = %s.%s", b.quote(otherRef), b.quote(otherCol), b.quote(ref), b.quote(newCol))
	return sql, nil
}

func (b *builder) renderOrderBy(items []queryplan.OrderItem) (string, error) {
	parts := make([]string, len(items))
	for i, item := range items {
		expr, err := b.renderOperand(item.Expr)
		if err != nil {
			return "", err
		}
		dir := item.Dir
		if dir == "" {
			dir = queryplan.DirAsc
		}
		parts[i] = expr + " " + dir
	}
	return strings.Join(parts, ", "), nil
}

func (b *builder) renderWindows(windows []queryplan.WindowSpec) (string, error) {
	parts := make([]string, len(windows))
	for i, w := range windows {
		var clauses []string
		if len(w.PartitionBy) > 0 {
			items := make([]string, len(w.PartitionBy))
			for j, op := range w.PartitionBy {
				s, err := b.renderOperand(op)
				if err != nil {
					return "", err
				}
				items[j] = s
			}
			clauses = append(clauses, "PARTITION BY "+strings.Join(items, ", "))
		}
		if len(w.OrderBy) > 0 {
			orderSQL, err := b.renderOrderBy(w.OrderBy)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, "ORDER BY "+orderSQL)
		}
		if w.Frame != "" {
			clauses = append(clauses, w.Frame)
		}
		parts[i] = b.quote(w.Name) + " AS (" + strings.Join(clauses, " ") + ")"
	}
	return strings.Join(parts, ", "), nil
}

func setOpKeyword(op string) string {
	switch op {
	case queryplan.SetOpUnion:
		return "UNION"
	case queryplan.SetOpUnionAll:
		return "UNION ALL"
	case queryplan.SetOpIntersect:
		return "INTERSECT"
	case queryplan.SetOpExcept:
		return "EXCEPT"
	default:
		return op
	}
}

// renderWith emits the WITH clause, using WITH RECURSIVE as soon as any
// entry is recursive (the keyword governs the whole clause, not one entry).
func (b *builder) renderWith(entries []queryplan.WithEntry) (string, error) {
	recursive := false
	for _, e := range entries {
		if e.Recursive {
			recursive = true
			break
		}
	}

	parts := make([]string, len(entries))
	for i, e := range entries {
		body, err := b.renderWithBody(e)
		if err != nil {
			return "", err
		}
		parts[i] = b.quote(e.Name) + " AS (" + body + ")"
	}

	kw := "WITH"
	if recursive {
		kw = "WITH RECURSIVE"
	}
	return kw + " " + strings.Join(parts, ", "), nil
}

// renderWithBody renders a non-recursive CTE body as a plain plan. A
// recursive entry's anchor is its plan with the top-level SET_OP stripped
// off; the step is that SET_OP's right branch. validate.Validate already
// rejects a recursive entry with no SET_OP, so Plan.SetOp is non-nil here.
func (b *builder) renderWithBody(e queryplan.WithEntry) (string, error) {
	if !e.Recursive {
		return b.renderPlan(e.Plan)
	}

	anchor := *e.Plan
	anchor.SetOp = nil
	anchorSQL, err := b.renderPlan(&anchor)
	if err != nil {
		return "", err
	}
	stepSQL, err := b.renderPlan(e.Plan.SetOp.Right)
	if err != nil {
		return "", err
	}
	return anchorSQL + " " + setOpKeyword(e.Plan.SetOp.Op) + " " + stepSQL, nil
}

// renderOperand is passed to OperatorRegistry handlers and
// Compiler.BuildFuncCall as the ArgBuilder callback.
func (b *builder) renderOperand(op queryplan.Operand) (string, error) {
	switch o := op.(type) {
	case queryplan.ColOperand:
		return b.qualifiedColumn(o.Table, o.Column), nil
	case queryplan.ValueOperand:
		name := b.bindValue(o.Value)
		return b.compiler.ParamPlaceholder(name), nil
	case queryplan.ParamOperand:
		return b.compiler.ParamPlaceholder(o.Name), nil
	case queryplan.FuncOperand:
		return b.compiler.BuildFuncCall(o.Func, o.Args, b.renderOperand)
	case queryplan.CaseOperand:
		return b.renderCase(o)
	default:
		return "", core.NewCompilationError("compile.internal", "unrecognized operand type")
	}
}

func (b *builder) renderCase(o queryplan.CaseOperand) (string, error) {
	var sb strings.Builder
	sb.WriteString("CASE")
	for _, w := range o.When {
		cond, err := b.renderPredicate(w.Cond)
		if err != nil {
			return "", err
		}
		then, err := b.renderOperand(w.Then)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHEN ")
		sb.WriteString(cond)
		sb.WriteString(" THEN ")
		sb.WriteString(then)
	}
	if o.Else != nil {
		els, err := b.renderOperand(o.Else)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ELSE ")
		sb.WriteString(els)
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

func (b *builder) renderPredicate(pred queryplan.Predicate) (string, error) {
	switch p := pred.(type) {
	case queryplan.BinaryPredicate:
		if p.Op == queryplan.OpLike || p.Op == queryplan.OpILike {
			return b.renderLike(p)
		}
		return b.renderViaOperator(p.Op, []queryplan.Operand{p.Left, p.Right})
	case queryplan.UnaryPredicate:
		return b.renderViaOperator(p.Op, []queryplan.Operand{p.Operand})
	case queryplan.BetweenPredicate:
		return b.renderViaOperator("BETWEEN", []queryplan.Operand{p.Operand, p.Low, p.High})
	case queryplan.InPredicate:
		return b.renderIn(p)
	case queryplan.LogicalPredicate:
		return b.renderLogical(p)
	case queryplan.NotPredicate:
		inner, err := b.renderPredicate(p.Predicate)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case queryplan.ExistsPredicate:
		sub, err := b.renderPlan(p.Subquery)
		if err != nil {
			return "", err
		}
		if p.Op == queryplan.OpNotExists {
			return "NOT EXISTS (" + sub + ")", nil
		}
		return "EXISTS (" + sub + ")", nil
	case queryplan.ExtensionPredicate:
		return b.renderViaOperator(p.Op, p.Args)
	default:
		return "", core.NewCompilationError("compile.internal", "unrecognized predicate type")
	}
}

func (b *builder) renderViaOperator(op string, args []queryplan.Operand) (string, error) {
	fn, ok := lookupOperator(op)
	if !ok {
		return "", core.NewCompilationError("compile.unsupported_operator",
			fmt.Sprintf("no renderer registered for operator %q", op))
	}
	return fn(op, args, b.renderOperand)
}

func (b *builder) renderLike(p queryplan.BinaryPredicate) (string, error) {
	sqlOp, lowerBoth := b.compiler.LikeOperator(p.Op)
	left, err := b.renderOperand(p.Left)
	if err != nil {
		return "", err
	}
	right, err := b.renderOperand(p.Right)
	if err != nil {
		return "", err
	}
	if lowerBoth {
		return fmt.Sprintf("LOWER(%s) %s LOWER(%s)", left, sqlOp, right), nil
	}
	return left + " " + sqlOp + " " + right, nil
}

func (b *builder) renderIn(p queryplan.InPredicate) (string, error) {
	left, err := b.renderOperand(p.Left)
	if err != nil {
		return "", err
	}
	keyword := "IN"
	if p.Op == queryplan.OpNotIn {
		keyword = "NOT IN"
	}
	if p.Subquery != nil {
		sub, err := b.renderPlan(p.Subquery)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s (%s)", left, keyword, sub), nil
	}
	items := make([]string, len(p.List))
	for i, it := range p.List {
		s, err := b.renderOperand(it)
		if err != nil {
			return "", err
		}
		items[i] = s
	}
	return fmt.Sprintf("%s %s (%s)", left, keyword, strings.Join(items, ", ")), nil
}

func (b *builder) renderLogical(p queryplan.LogicalPredicate) (string, error) {
	parts := make([]string, len(p.Predicates))
	for i, sub := range p.Predicates {
		s, err := b.renderPredicate(sub)
		if err != nil {
			return "", err
		}
		parts[i] = "(" + s + ")"
	}
	joiner := " AND "
	if p.Op == queryplan.OpOr {
		joiner = " OR "
	}
	return strings.Join(parts, joiner), nil
}
