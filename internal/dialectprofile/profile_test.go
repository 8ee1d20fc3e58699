package dialectprofile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderBuild(t *testing.T) {
	t.Run("enables requested capabilities", func(t *testing.T) {
		p, err := NewBuilder("postgres").Subqueries().Ctes().Build()
		require.NoError(t, err)
		assert.True(t, p.Has(CapCTEs))
		assert.True(t, p.Has(CapSubqueries))
		assert.False(t, p.Has(CapWindowFunctions))
		assert.Equal(t, "postgres", p.Target())
	})

	t.Run("defaults max join depth to 2", func(t *testing.T) {
		p, err := NewBuilder("postgres").Build()
		require.NoError(t, err)
		assert.Equal(t, 2, p.MaxJoinDepth())
	})

	t.Run("ctes without subqueries fails", func(t *testing.T) {
		_, err := NewBuilder("postgres").Ctes().Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ctes")
		assert.Contains(t, err.Error(), "subqueries")
	})

	t.Run("window_functions without aggregations fails", func(t *testing.T) {
		_, err := NewBuilder("postgres").WindowFunctions().Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "window_functions")
		assert.Contains(t, err.Error(), "aggregations")
	})

	t.Run("ctes with subqueries succeeds", func(t *testing.T) {
		_, err := NewBuilder("postgres").Subqueries().Ctes().Build()
		assert.NoError(t, err)
	})

	t.Run("window_functions with aggregations succeeds", func(t *testing.T) {
		_, err := NewBuilder("postgres").Aggregations().WindowFunctions().Build()
		assert.NoError(t, err)
	})

	t.Run("empty table whitelist allows every table", func(t *testing.T) {
		p, err := NewBuilder("postgres").Build()
		require.NoError(t, err)
		assert.True(t, p.TableAllowed("anything"))
	})

	t.Run("non-empty table whitelist restricts", func(t *testing.T) {
		p, err := NewBuilder("postgres").AllowTables("users", "orders").Build()
		require.NoError(t, err)
		assert.True(t, p.TableAllowed("users"))
		assert.False(t, p.TableAllowed("secrets"))
	})

	t.Run("custom max join depth", func(t *testing.T) {
		p, err := NewBuilder("postgres").MaxJoinDepth(5).Build()
		require.NoError(t, err)
		assert.Equal(t, 5, p.MaxJoinDepth())
	})
}

func TestDefaultProfiles(t *testing.T) {
	t.Run("postgres and sqlite allow offset without limit", func(t *testing.T) {
		pg, err := DefaultPostgresProfile()
		require.NoError(t, err)
		assert.True(t, pg.Has(CapOffsetWithoutLimit))

		sqlite, err := DefaultSQLiteProfile()
		require.NoError(t, err)
		assert.True(t, sqlite.Has(CapOffsetWithoutLimit))
	})

	t.Run("mysql disallows offset without limit", func(t *testing.T) {
		mysql, err := DefaultMySQLProfile()
		require.NoError(t, err)
		assert.False(t, mysql.Has(CapOffsetWithoutLimit))
	})
}
