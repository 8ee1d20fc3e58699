package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTables() []*Table {
	return []*Table{
		{
			Name: "users",
			Columns: []*Column{
				{Name: "id", SQLType: "integer"},
				{Name: "email", SQLType: "text"},
			},
		},
		{
			Name: "orders",
			Columns: []*Column{
				{Name: "id", SQLType: "integer"},
				{Name: "user_id", SQLType: "integer"},
			},
		},
	}
}

func TestNewSchemaSnapshot(t *testing.T) {
	t.Run("builds lookup indexes", func(t *testing.T) {
		snap, err := NewSchemaSnapshot(sampleTables(), nil)
		require.NoError(t, err)

		tbl, ok := snap.Table("users")
		assert.True(t, ok)
		assert.Equal(t, "users", tbl.Name)

		col, ok := snap.Column("orders", "user_id")
		assert.True(t, ok)
		assert.Equal(t, "integer", col.SQLType)

		_, ok = snap.Table("missing")
		assert.False(t, ok)
	})

	t.Run("rejects duplicate table names", func(t *testing.T) {
		tables := append(sampleTables(), &Table{Name: "users"})
		_, err := NewSchemaSnapshot(tables, nil)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate column names", func(t *testing.T) {
		tables := []*Table{
			{Name: "users", Columns: []*Column{{Name: "id"}, {Name: "id"}}},
		}
		_, err := NewSchemaSnapshot(tables, nil)
		assert.Error(t, err)
	})

	t.Run("accepts a relationship between declared columns", func(t *testing.T) {
		rel := &Relationship{
			Key:        "orders.user_id->users.id",
			FromTable:  "orders",
			FromColumn: "user_id",
			ToTable:    "users",
			ToColumn:   "id",
		}
		snap, err := NewSchemaSnapshot(sampleTables(), []*Relationship{rel})
		require.NoError(t, err)

		got, ok := snap.Relationship(rel.Key)
		require.True(t, ok)
		assert.Equal(t, "users", got.ToTable)
	})

	t.Run("rejects a relationship to an undeclared column", func(t *testing.T) {
		rel := &Relationship{
			Key:        "bad",
			FromTable:  "orders",
			FromColumn: "nonexistent",
			ToTable:    "users",
			ToColumn:   "id",
		}
		_, err := NewSchemaSnapshot(sampleTables(), []*Relationship{rel})
		assert.Error(t, err)
	})

	t.Run("rejects duplicate relationship keys", func(t *testing.T) {
		rel := &Relationship{Key: "dup", FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"}
		_, err := NewSchemaSnapshot(sampleTables(), []*Relationship{rel, rel})
		assert.Error(t, err)
	})
}

func TestTableFindColumn(t *testing.T) {
	tables := sampleTables()
	snap, err := NewSchemaSnapshot(tables, nil)
	require.NoError(t, err)

	tbl, ok := snap.Table("users")
	require.True(t, ok)

	t.Run("find existing column", func(t *testing.T) {
		col, ok := tbl.FindColumn("email")
		assert.True(t, ok)
		assert.Equal(t, "email", col.Name)
	})

	t.Run("column not found", func(t *testing.T) {
		_, ok := tbl.FindColumn("nonexistent")
		assert.False(t, ok)
	})
}

func TestSchemaSnapshotTableNames(t *testing.T) {
	snap, err := NewSchemaSnapshot(sampleTables(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "orders"}, snap.TableNames())
}
