package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/core"
	"queryguard/internal/dialectprofile"
	"queryguard/internal/policy"
)

func employeesDepartmentsSnapshot(t *testing.T) *core.SchemaSnapshot {
	t.Helper()
	tables := []*core.Table{
		{Name: "employees", Columns: []*core.Column{
			{Name: "employee_id", SQLType: "integer"},
			{Name: "tenant_id", SQLType: "text"},
			{Name: "first_name", SQLType: "text"},
			{Name: "department_id", SQLType: "integer"},
			{Name: "salary", SQLType: "integer"},
		}},
		{Name: "departments", Columns: []*core.Column{
			{Name: "department_id", SQLType: "integer"},
			{Name: "name", SQLType: "text"},
		}},
	}
	rels := []*core.Relationship{
		{Key: "departments__employees", FromTable: "employees", FromColumn: "department_id", ToTable: "departments", ToColumn: "department_id"},
	}
	snap, err := core.NewSchemaSnapshot(tables, rels)
	require.NoError(t, err)
	return snap
}

func joinProfile(t *testing.T) *dialectprofile.Profile {
	t.Helper()
	p, err := dialectprofile.NewBuilder("postgres").Joins().Build()
	require.NoError(t, err)
	return p
}

func TestScenarioTenantInject(t *testing.T) {
	snapshot := employeesDepartmentsSnapshot(t)
	profile, err := dialectprofile.NewBuilder("postgres").Build()
	require.NoError(t, err)

	limit := 100
	cfg := &policy.Config{
		InjectMissingParams: true,
		DefaultLimit:        &limit,
		Tables: map[string]policy.TablePolicy{
			"employees": {ParamBoundColumns: map[string]string{"tenant_id": "TENANT"}},
		},
	}

	plan := []byte(`{"SELECT":[{"expr":{"col":"employees.first_name"}}],"FROM":{"table":"employees"}}`)
	out, err := ValidateAndCompile(plan, snapshot, profile, cfg)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "employees"."first_name" FROM "employees" WHERE "employees"."tenant_id" = %(TENANT)s LIMIT %(param_0)s`,
		out.SQL)
	assert.Equal(t, map[string]any{"param_0": 100}, out.Params)
	assert.Equal(t, map[string]bool{"TENANT": true}, out.RequiredParams)
}

func TestScenarioDenyList(t *testing.T) {
	snapshot := employeesDepartmentsSnapshot(t)
	profile, err := dialectprofile.NewBuilder("postgres").Build()
	require.NoError(t, err)

	cfg := &policy.Config{
		Tables: map[string]policy.TablePolicy{
			"employees": {DeniedColumns: map[string]bool{"salary": true}},
		},
	}

	plan := []byte(`{"SELECT":[{"expr":{"col":"employees.salary"}}],"FROM":{"table":"employees"}}`)
	_, err = ValidateAndCompile(plan, snapshot, profile, cfg)
	require.Error(t, err)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "policy.column_denied", verr.Code)
}

func TestScenarioJoinViaRelationship(t *testing.T) {
	snapshot := employeesDepartmentsSnapshot(t)
	profile := joinProfile(t)

	cfg := &policy.Config{
		InjectMissingParams: true,
		Tables: map[string]policy.TablePolicy{
			"employees":   {ParamBoundColumns: map[string]string{"tenant_id": "TENANT"}},
			"departments": {},
		},
	}

	plan := []byte(`{
		"SELECT":[{"expr":{"col":"employees.first_name"}},{"expr":{"col":"departments.name"}}],
		"FROM":{"table":"employees"},
		"JOIN":[{"rel":"departments__employees","type":"LEFT"}]
	}`)
	out, err := ValidateAndCompile(plan, snapshot, profile, cfg)
	require.NoError(t, err)

	assert.Contains(t, out.SQL,
		`FROM "employees" LEFT JOIN "departments" ON "employees"."department_id" = "departments"."department_id"`)
	assert.Contains(t, out.SQL, `"employees"."tenant_id" = %(TENANT)s`)
}

func TestScenarioORBypass(t *testing.T) {
	snapshot := employeesDepartmentsSnapshot(t)
	profile, err := dialectprofile.NewBuilder("postgres").Build()
	require.NoError(t, err)

	cfg := &policy.Config{
		InjectMissingParams: true,
		Tables: map[string]policy.TablePolicy{
			"employees": {ParamBoundColumns: map[string]string{"tenant_id": "TENANT"}},
		},
	}

	plan := []byte(`{
		"SELECT": "*",
		"FROM": {"table": "employees"},
		"WHERE": {"OR": [
			{"EQ": [{"col": "employees.tenant_id"}, {"param": "TENANT"}]},
			{"EQ": [{"col": "employees.employee_id"}, {"value": 1}]}
		]}
	}`)
	_, err = ValidateAndCompile(plan, snapshot, profile, cfg)
	require.Error(t, err)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "policy.or_bypass", verr.Code)
}

func TestScenarioUnknownRelationship(t *testing.T) {
	snapshot := employeesDepartmentsSnapshot(t)
	profile := joinProfile(t)
	cfg := &policy.Config{}

	plan := []byte(`{
		"SELECT": "*",
		"FROM": {"table": "employees"},
		"JOIN": [{"rel": "ghost", "type": "INNER"}]
	}`)
	_, err := ValidateAndCompile(plan, snapshot, profile, cfg)
	require.Error(t, err)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "validate.unknown_relationship", verr.Code)
}

func TestScenarioDialectDependency(t *testing.T) {
	_, err := dialectprofile.NewBuilder("postgres").Ctes().Build()
	require.Error(t, err)

	var perr *core.ProfileConfigError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ctes", perr.Capability)
}
