package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/core"
	"queryguard/internal/dialectprofile"
)

func testSnapshot(t *testing.T) *core.SchemaSnapshot {
	t.Helper()
	tables := []*core.Table{
		{Name: "employees", Description: "Staff roster", Columns: []*core.Column{
			{Name: "employee_id", SQLType: "integer", Description: "primary key"},
			{Name: "tenant_id", SQLType: "text"},
			{Name: "department_id", SQLType: "integer", Nullable: true},
		}},
	}
	snap, err := core.NewSchemaSnapshot(tables, nil)
	require.NoError(t, err)
	return snap
}

func TestBuildComponentsIncludesSchemaAndDialect(t *testing.T) {
	profile, err := dialectprofile.NewBuilder("postgres").Joins().Build()
	require.NoError(t, err)

	system, user := BuildComponents(testSnapshot(t), profile, "how many employees per department?", "")

	assert.Contains(t, system, "employees")
	assert.Contains(t, system, "Staff roster")
	assert.Contains(t, system, "tenant_id")
	assert.Contains(t, system, "postgres")
	assert.Contains(t, system, "JOIN")
	assert.Contains(t, user, "how many employees per department?")
}

func TestBuildComponentsOmitsEmptyPolicySection(t *testing.T) {
	profile, err := dialectprofile.NewBuilder("postgres").Build()
	require.NoError(t, err)

	system, _ := BuildComponents(testSnapshot(t), profile, "q", "")
	assert.NotContains(t, system, "Policy in force")
}

func TestBuildComponentsIncludesPolicySummary(t *testing.T) {
	profile, err := dialectprofile.NewBuilder("postgres").Build()
	require.NoError(t, err)

	system, _ := BuildComponents(testSnapshot(t), profile, "q", "tenant_id is always filtered to the caller's tenant")
	assert.Contains(t, system, "Policy in force")
	assert.Contains(t, system, "tenant_id is always filtered")
}

func TestBuildComponentsNoFeaturesEnabled(t *testing.T) {
	profile, err := dialectprofile.NewBuilder("sqlite").Build()
	require.NoError(t, err)

	system, _ := BuildComponents(testSnapshot(t), profile, "q", "")
	assert.Contains(t, system, "Enabled features: none")
}
