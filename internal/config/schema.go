// Package config loads the three TOML-declared inputs a deployment wires
// together at startup — schema, dialect profile, policy — the same
// decode-into-struct-then-convert shape as the teacher's
// internal/parser/toml package, generalized from one document type to
// three.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"queryguard/internal/core"
)

type tomlColumn struct {
	Name        string `toml:"name"`
	SQLType     string `toml:"sql_type"`
	Nullable    bool   `toml:"nullable"`
	Description string `toml:"description"`
}

type tomlTable struct {
	Name        string       `toml:"name"`
	Description string       `toml:"description"`
	Columns     []tomlColumn `toml:"columns"`
}

type tomlRelationship struct {
	Key        string `toml:"key"`
	FromTable  string `toml:"from_table"`
	FromColumn string `toml:"from_column"`
	ToTable    string `toml:"to_table"`
	ToColumn   string `toml:"to_column"`
}

type tomlSchema struct {
	Tables        []tomlTable        `toml:"tables"`
	Relationships []tomlRelationship `toml:"relationships"`
}

// LoadSchema reads a schema declaration from a TOML file and builds a
// core.SchemaSnapshot.
func LoadSchema(path string) (*core.SchemaSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open schema file %q: %w", path, err)
	}
	defer f.Close()
	return DecodeSchema(f)
}

// DecodeSchema reads a schema declaration from r.
func DecodeSchema(r io.Reader) (*core.SchemaSnapshot, error) {
	var sf tomlSchema
	if _, err := toml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, fmt.Errorf("config: decode schema: %w", err)
	}

	tables := make([]*core.Table, 0, len(sf.Tables))
	for _, t := range sf.Tables {
		columns := make([]*core.Column, 0, len(t.Columns))
		for _, c := range t.Columns {
			columns = append(columns, &core.Column{
				Name:        c.Name,
				SQLType:     c.SQLType,
				Nullable:    c.Nullable,
				Description: c.Description,
			})
		}
		tables = append(tables, &core.Table{
			Name:        t.Name,
			Columns:     columns,
			Description: t.Description,
		})
	}

	rels := make([]*core.Relationship, 0, len(sf.Relationships))
	for _, r := range sf.Relationships {
		rels = append(rels, &core.Relationship{
			Key:        r.Key,
			FromTable:  r.FromTable,
			FromColumn: r.FromColumn,
			ToTable:    r.ToTable,
			ToColumn:   r.ToColumn,
		})
	}

	return core.NewSchemaSnapshot(tables, rels)
}
