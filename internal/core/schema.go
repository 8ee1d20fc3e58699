// Package core contains the single source of truth describing a database
// that a QueryPlan is validated and compiled against: its tables, columns,
// and named relationships between them, plus the error taxonomy shared by
// every later stage of the pipeline.
package core

import "fmt"

// SchemaSnapshot is an immutable structural description of a database,
// loaded once and shared across requests. Column and relationship lookups
// are O(1) by construction: NewSchemaSnapshot builds the indexes once and
// every later Validate/Compile call only reads them.
type SchemaSnapshot struct {
	tables        map[string]*Table
	relationships map[string]*Relationship
	tableOrder    []string
}

// Table describes a single table: its unique name, its ordered columns,
// and an optional description. Relationships are held by the
// SchemaSnapshot, not by the tables they connect.
type Table struct {
	Name        string
	Columns     []*Column
	Description string

	columnIndex map[string]*Column
}

// Column describes a single column within a table.
type Column struct {
	Name        string
	SQLType     string
	Nullable    bool
	Description string
}

// Relationship is a directional named join edge between two (table, column)
// pairs. The join builder (internal/compile) may traverse it in either
// direction when resolving a JOIN{rel} clause.
type Relationship struct {
	Key string

	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// NewSchemaSnapshot builds an immutable SchemaSnapshot from tables and
// relationships, validating the invariants from spec §3.1: table names and
// relationship keys are unique, and every relationship's endpoints resolve
// to declared (table, column) pairs.
func NewSchemaSnapshot(tables []*Table, relationships []*Relationship) (*SchemaSnapshot, error) {
	s := &SchemaSnapshot{
		tables:        make(map[string]*Table, len(tables)),
		relationships: make(map[string]*Relationship, len(relationships)),
	}

	for _, t := range tables {
		if t == nil {
			return nil, fmt.Errorf("schema: nil table")
		}
		if t.Name == "" {
			return nil, fmt.Errorf("schema: table has empty name")
		}
		if _, exists := s.tables[t.Name]; exists {
			return nil, fmt.Errorf("schema: duplicate table name %q", t.Name)
		}
		t.columnIndex = make(map[string]*Column, len(t.Columns))
		for _, c := range t.Columns {
			if c == nil {
				return nil, fmt.Errorf("schema: table %q has a nil column", t.Name)
			}
			if _, exists := t.columnIndex[c.Name]; exists {
				return nil, fmt.Errorf("schema: table %q has duplicate column %q", t.Name, c.Name)
			}
			t.columnIndex[c.Name] = c
		}
		s.tables[t.Name] = t
		s.tableOrder = append(s.tableOrder, t.Name)
	}

	for _, r := range relationships {
		if r == nil {
			return nil, fmt.Errorf("schema: nil relationship")
		}
		if _, exists := s.relationships[r.Key]; exists {
			return nil, fmt.Errorf("schema: duplicate relationship key %q", r.Key)
		}
		if _, ok := s.lookupColumn(r.FromTable, r.FromColumn); !ok {
			return nil, fmt.Errorf("schema: relationship %q source %s.%s is not a declared column", r.Key, r.FromTable, r.FromColumn)
		}
		if _, ok := s.lookupColumn(r.ToTable, r.ToColumn); !ok {
			return nil, fmt.Errorf("schema: relationship %q target %s.%s is not a declared column", r.Key, r.ToTable, r.ToColumn)
		}
		s.relationships[r.Key] = r
	}

	return s, nil
}

// Table returns the table with the given name, or nil if not declared.
func (s *SchemaSnapshot) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// TableNames returns the declared table names in declaration order.
func (s *SchemaSnapshot) TableNames() []string {
	out := make([]string, len(s.tableOrder))
	copy(out, s.tableOrder)
	return out
}

// Column looks up a column by (table, column) name in O(1).
func (s *SchemaSnapshot) Column(table, column string) (*Column, bool) {
	return s.lookupColumn(table, column)
}

func (s *SchemaSnapshot) lookupColumn(table, column string) (*Column, bool) {
	t, ok := s.tables[table]
	if !ok {
		return nil, false
	}
	c, ok := t.columnIndex[column]
	return c, ok
}

// Relationship looks up a relationship by its key in O(1).
func (s *SchemaSnapshot) Relationship(key string) (*Relationship, bool) {
	r, ok := s.relationships[key]
	return r, ok
}

// FindColumn looks up a column by name within a table.
func (t *Table) FindColumn(name string) (*Column, bool) {
	c, ok := t.columnIndex[name]
	return c, ok
}
