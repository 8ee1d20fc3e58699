package compile

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"queryguard/internal/dialectprofile"
)

type testMySQLContainer struct {
	container *mysql.MySQLContainer
	dsn       string
	db        *sql.DB
}

func setupMySQL(t *testing.T) *testMySQLContainer {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "failed to open direct DB connection")
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close db: %v", err)
		}
	})

	_, err = db.ExecContext(ctx, `CREATE TABLE employees (
		employee_id INT PRIMARY KEY,
		tenant_id VARCHAR(64),
		first_name VARCHAR(64),
		department_id INT,
		salary INT
	)`)
	require.NoError(t, err, "failed to create employees table")

	_, err = db.ExecContext(ctx, `INSERT INTO employees VALUES
		(1, 'acme', 'Ada', 10, 90000),
		(2, 'acme', 'Bea', 10, 80000),
		(3, 'other', 'Cid', 11, 70000)`)
	require.NoError(t, err, "failed to seed employees table")

	return &testMySQLContainer{container: mysqlContainer, dsn: dsn, db: db}
}

// toPositional rewrites this package's named "%(name)s" placeholders into
// the driver's "?" positional form, in the order they're bound, since
// go-sql-driver/mysql has no native named-parameter support.
func toPositional(sqlText string, params map[string]any) (string, []any) {
	pattern := regexp.MustCompile(`%\(([A-Za-z0-9_]+)\)s`)
	var args []any
	rewritten := pattern.ReplaceAllStringFunc(sqlText, func(m string) string {
		name := pattern.FindStringSubmatch(m)[1]
		args = append(args, params[name])
		return "?"
	})
	return rewritten, args
}

func TestMySQLCompiledSQLExecutesAgainstRealDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupMySQL(t)
	ctx := context.Background()

	plan := mustParse(t, `{
		"SELECT": [{"expr": {"col": "employees.first_name"}}],
		"FROM": {"table": "employees"},
		"WHERE": {"EQ": [{"col": "employees.tenant_id"}, {"param": "TENANT"}]},
		"ORDER_BY": [{"expr": {"col": "employees.first_name"}, "dir": "ASC"}]
	}`)

	profile, err := dialectprofile.NewBuilder("mysql").Build()
	require.NoError(t, err)

	out, err := Compile(plan, testSnapshot(t), profile, map[string]bool{"TENANT": true})
	require.NoError(t, err)

	merged, err := out.MergeRuntimeParams(map[string]any{"TENANT": "acme"})
	require.NoError(t, err)

	positional, args := toPositional(out.SQL, merged)
	rows, err := tc.db.QueryContext(ctx, positional, args...)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Ada", "Bea"}, names)
}
