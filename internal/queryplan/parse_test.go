package queryplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanBasic(t *testing.T) {
	doc := `{
		"SELECT": [{"expr": {"col": "employees.first_name"}}],
		"FROM": {"table": "employees"}
	}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	require.Len(t, plan.Select, 1)
	assert.Equal(t, ColOperand{Table: "employees", Column: "first_name"}, plan.Select[0].Expr)
	assert.Equal(t, "employees", plan.From.Table)
}

func TestParsePlanWildcardSelect(t *testing.T) {
	doc := `{"SELECT": "*", "FROM": {"table": "employees"}}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	require.Len(t, plan.Select, 1)
	assert.True(t, plan.Select[0].Wildcard)
}

func TestParsePlanMissingRequiredField(t *testing.T) {
	t.Run("missing SELECT", func(t *testing.T) {
		_, err := ParsePlan([]byte(`{"FROM": {"table": "employees"}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SELECT")
	})

	t.Run("missing FROM", func(t *testing.T) {
		_, err := ParsePlan([]byte(`{"SELECT": "*"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FROM")
	})
}

func TestParsePlanUnknownKey(t *testing.T) {
	doc := `{"SELECT": "*", "FROM": {"table": "t"}, "BOGUS": 1}`
	_, err := ParsePlan([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOGUS")
}

func TestParsePlanTooLarge(t *testing.T) {
	doc := []byte(`{"SELECT": "*", "FROM": {"table": "t"}}`)
	_, err := ParsePlanJSON(doc, ParseOptions{MaxPlanBytes: 4})
	require.Error(t, err)
}

func TestParseColumnRef(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		doc := `{"SELECT": [{"expr": {"col": "t.c"}}], "FROM": {"table": "t"}}`
		plan, err := ParsePlan([]byte(doc))
		require.NoError(t, err)
		assert.Equal(t, ColOperand{Table: "t", Column: "c"}, plan.Select[0].Expr)
	})

	t.Run("missing dot", func(t *testing.T) {
		doc := `{"SELECT": [{"expr": {"col": "bareword"}}], "FROM": {"table": "t"}}`
		_, err := ParsePlan([]byte(doc))
		assert.Error(t, err)
	})
}

func TestParseWherePredicateTree(t *testing.T) {
	doc := `{
		"SELECT": "*",
		"FROM": {"table": "employees"},
		"WHERE": {"OR": [
			{"EQ": [{"col": "employees.tenant_id"}, {"param": "TENANT"}]},
			{"EQ": [{"col": "employees.employee_id"}, {"value": 1}]}
		]}
	}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)

	or, ok := plan.Where.(LogicalPredicate)
	require.True(t, ok)
	assert.Equal(t, OpOr, or.Op)
	require.Len(t, or.Predicates, 2)

	first, ok := or.Predicates[0].(BinaryPredicate)
	require.True(t, ok)
	assert.Equal(t, OpEQ, first.Op)
	assert.Equal(t, ColOperand{Table: "employees", Column: "tenant_id"}, first.Left)
	assert.Equal(t, ParamOperand{Name: "TENANT"}, first.Right)
}

func TestParsePredicateArity(t *testing.T) {
	t.Run("EQ with wrong arity fails", func(t *testing.T) {
		doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"EQ": [{"col":"t.c"}]}}`
		_, err := ParsePlan([]byte(doc))
		assert.Error(t, err)
	})

	t.Run("BETWEEN requires exactly 3", func(t *testing.T) {
		doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"BETWEEN": [{"col":"t.c"},{"value":1}]}}`
		_, err := ParsePlan([]byte(doc))
		assert.Error(t, err)
	})

	t.Run("AND requires at least 2", func(t *testing.T) {
		doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"AND": [{"IS_NULL": [{"col":"t.c"}]}]}}`
		_, err := ParsePlan([]byte(doc))
		assert.Error(t, err)
	})
}

func TestParseInPredicate(t *testing.T) {
	t.Run("with list", func(t *testing.T) {
		doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"IN": {"left": {"col":"t.c"}, "list": [{"value":1},{"value":2}]}}}`
		plan, err := ParsePlan([]byte(doc))
		require.NoError(t, err)
		in, ok := plan.Where.(InPredicate)
		require.True(t, ok)
		assert.Len(t, in.List, 2)
		assert.Nil(t, in.Subquery)
	})

	t.Run("with subquery", func(t *testing.T) {
		doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"IN": {"left": {"col":"t.c"}, "subquery": {"SELECT": "*", "FROM": {"table": "u"}}}}}`
		plan, err := ParsePlan([]byte(doc))
		require.NoError(t, err)
		in, ok := plan.Where.(InPredicate)
		require.True(t, ok)
		require.NotNil(t, in.Subquery)
		assert.Equal(t, "u", in.Subquery.From.Table)
	})
}

func TestParseExistsPredicate(t *testing.T) {
	doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"EXISTS": {"SELECT": "*", "FROM": {"table": "u"}}}}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	ex, ok := plan.Where.(ExistsPredicate)
	require.True(t, ok)
	assert.Equal(t, "u", ex.Subquery.From.Table)
}

func TestParseExtensionPredicate(t *testing.T) {
	doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"CONTAINS": [{"col":"t.c"}, {"value":"x"}]}}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	ext, ok := plan.Where.(ExtensionPredicate)
	require.True(t, ok)
	assert.Equal(t, "CONTAINS", ext.Op)
	assert.Len(t, ext.Args, 2)
}

func TestParseSubqueryOperand(t *testing.T) {
	doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"EQ": [{"col": "t.c"}, {"subquery": {"SELECT": "*", "FROM": {"table": "u"}}}]}}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	eq, ok := plan.Where.(BinaryPredicate)
	require.True(t, ok)
	sub, ok := eq.Right.(SubqueryOperand)
	require.True(t, ok, "a {\"subquery\": ...} operand must parse, not error as an unknown tag")
	assert.Equal(t, "u", sub.Plan.From.Table)
}

func TestParseJoin(t *testing.T) {
	doc := `{
		"SELECT": "*",
		"FROM": {"table": "employees"},
		"JOIN": [{"rel": "departments__employees", "type": "LEFT"}]
	}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	require.Len(t, plan.Join, 1)
	assert.Equal(t, "departments__employees", plan.Join[0].Rel)
	assert.Equal(t, JoinLeft, plan.Join[0].Type)
}

func TestParseLimitOffset(t *testing.T) {
	t.Run("literal value", func(t *testing.T) {
		doc := `{"SELECT": "*", "FROM": {"table": "t"}, "LIMIT": {"value": 10}}`
		plan, err := ParsePlan([]byte(doc))
		require.NoError(t, err)
		require.NotNil(t, plan.Limit.Value)
		assert.Equal(t, 10, *plan.Limit.Value)
	})

	t.Run("param", func(t *testing.T) {
		doc := `{"SELECT": "*", "FROM": {"table": "t"}, "OFFSET": {"param": "PAGE_OFFSET"}}`
		plan, err := ParsePlan([]byte(doc))
		require.NoError(t, err)
		assert.Equal(t, "PAGE_OFFSET", plan.Offset.Param)
	})

	t.Run("negative value rejected", func(t *testing.T) {
		doc := `{"SELECT": "*", "FROM": {"table": "t"}, "LIMIT": {"value": -1}}`
		_, err := ParsePlan([]byte(doc))
		assert.Error(t, err)
	})
}

func TestParseSetOp(t *testing.T) {
	doc := `{
		"SELECT": "*",
		"FROM": {"table": "t"},
		"SET_OP": {"op": "UNION_ALL", "right": {"SELECT": "*", "FROM": {"table": "u"}}}
	}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	require.NotNil(t, plan.SetOp)
	assert.Equal(t, SetOpUnionAll, plan.SetOp.Op)
	assert.Equal(t, "u", plan.SetOp.Right.From.Table)
}

func TestParseWithRecursive(t *testing.T) {
	doc := `{
		"WITH": [{"name": "cte1", "recursive": true, "plan": {
			"SELECT": "*", "FROM": {"table": "t"},
			"SET_OP": {"op": "UNION_ALL", "right": {"SELECT": "*", "FROM": {"table": "t"}}}
		}}],
		"SELECT": "*",
		"FROM": {"table": "cte1"}
	}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	require.Len(t, plan.With, 1)
	assert.True(t, plan.With[0].Recursive)
	assert.Equal(t, "cte1", plan.With[0].Name)
}

func TestParseCaseOperand(t *testing.T) {
	doc := `{
		"SELECT": [{"expr": {"case": {
			"when": [{"cond": {"IS_NULL": [{"col": "t.c"}]}, "then": {"value": "unknown"}}],
			"else": {"col": "t.c"}
		}}}],
		"FROM": {"table": "t"}
	}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	c, ok := plan.Select[0].Expr.(CaseOperand)
	require.True(t, ok)
	require.Len(t, c.When, 1)
	_, ok = c.When[0].Cond.(UnaryPredicate)
	assert.True(t, ok)
	assert.Equal(t, ColOperand{Table: "t", Column: "c"}, c.Else)
}

func TestParseFuncOperand(t *testing.T) {
	doc := `{
		"SELECT": [{"expr": {"func": {"func": "DATE_PART", "args": [{"value": "YEAR"}, {"col": "t.created_at"}]}}}],
		"FROM": {"table": "t"}
	}`
	plan, err := ParsePlan([]byte(doc))
	require.NoError(t, err)
	fn, ok := plan.Select[0].Expr.(FuncOperand)
	require.True(t, ok)
	assert.Equal(t, "DATE_PART", fn.Func)
	assert.Len(t, fn.Args, 2)
}

func TestParseMaxDepthExceeded(t *testing.T) {
	doc := `{"SELECT": "*", "FROM": {"table": "t"}, "WHERE": {"NOT": [{"NOT": [{"NOT": [{"IS_NULL": [{"col":"t.c"}]}]}]}]}}`
	_, err := ParsePlanJSON([]byte(doc), ParseOptions{MaxDepth: 2})
	assert.Error(t, err)
}
