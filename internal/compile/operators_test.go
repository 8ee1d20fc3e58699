package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/queryplan"
)

func TestBuiltinOperatorsRegistered(t *testing.T) {
	for _, op := range []string{
		queryplan.OpEQ, queryplan.OpNEQ, queryplan.OpLT, queryplan.OpLTE,
		queryplan.OpGT, queryplan.OpGTE, queryplan.OpIsNull, queryplan.OpIsNotNull,
		"BETWEEN",
	} {
		_, ok := lookupOperator(op)
		assert.True(t, ok, "expected operator %q to be registered", op)
	}
}

func TestBinaryComparisonRendersBothSides(t *testing.T) {
	fn, ok := lookupOperator(queryplan.OpEQ)
	require.True(t, ok)

	sql, err := fn(queryplan.OpEQ, []queryplan.Operand{
		queryplan.ColOperand{Table: "employees", Column: "tenant_id"},
		queryplan.ValueOperand{Value: "acme"},
	}, echoBuild)
	require.NoError(t, err)
	assert.Equal(t, "employees.tenant_id = ?", sql)
}

func TestBinaryComparisonWrongArity(t *testing.T) {
	fn, ok := lookupOperator(queryplan.OpEQ)
	require.True(t, ok)

	_, err := fn(queryplan.OpEQ, []queryplan.Operand{queryplan.ValueOperand{Value: 1}}, echoBuild)
	assert.Error(t, err)
}

func TestUnaryNullCheck(t *testing.T) {
	fn, ok := lookupOperator(queryplan.OpIsNull)
	require.True(t, ok)

	sql, err := fn(queryplan.OpIsNull, []queryplan.Operand{
		queryplan.ColOperand{Table: "employees", Column: "department_id"},
	}, echoBuild)
	require.NoError(t, err)
	assert.Equal(t, "employees.department_id IS NULL", sql)
}

func TestBetweenRendersThreeOperands(t *testing.T) {
	fn, ok := lookupOperator("BETWEEN")
	require.True(t, ok)

	sql, err := fn("BETWEEN", []queryplan.Operand{
		queryplan.ColOperand{Table: "employees", Column: "salary"},
		queryplan.ValueOperand{Value: 1000},
		queryplan.ValueOperand{Value: 2000},
	}, echoBuild)
	require.NoError(t, err)
	assert.Equal(t, "employees.salary BETWEEN ? AND ?", sql)
}

func TestRegisterOperatorOverlaysExtension(t *testing.T) {
	saved := snapshotOperatorRegistry()
	defer resetOperatorRegistry(saved)

	RegisterOperator("CUSTOM_CONTAINS", func(op string, args []queryplan.Operand, build ArgBuilder) (string, error) {
		left, err := build(args[0])
		if err != nil {
			return "", err
		}
		return left + " @> ANY(?)", nil
	})

	fn, ok := lookupOperator("CUSTOM_CONTAINS")
	require.True(t, ok)
	sql, err := fn("CUSTOM_CONTAINS", []queryplan.Operand{
		queryplan.ColOperand{Table: "employees", Column: "tags"},
	}, echoBuild)
	require.NoError(t, err)
	assert.Equal(t, "employees.tags @> ANY(?)", sql)
}
