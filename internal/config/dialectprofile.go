package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"queryguard/internal/dialectprofile"
)

type tomlDialectProfile struct {
	Target           string   `toml:"target"`
	Capabilities     []string `toml:"capabilities"`
	MaxJoinDepth     int      `toml:"max_join_depth"`
	AllowedTables    []string `toml:"allowed_tables"`
	AllowedFunctions []string `toml:"allowed_functions"`
}

// capabilityByName maps a profile TOML's capability string to the
// corresponding Builder method.
var capabilityByName = map[string]func(*dialectprofile.Builder) *dialectprofile.Builder{
	"ctes":                 (*dialectprofile.Builder).Ctes,
	"window_functions":     (*dialectprofile.Builder).WindowFunctions,
	"aggregations":         (*dialectprofile.Builder).Aggregations,
	"subqueries":           (*dialectprofile.Builder).Subqueries,
	"joins":                (*dialectprofile.Builder).Joins,
	"set_operations":       (*dialectprofile.Builder).SetOperations,
	"offset_without_limit": (*dialectprofile.Builder).OffsetWithoutLimit,
}

// LoadDialectProfile reads a dialect profile declaration from a TOML file
// and builds a dialectprofile.Profile.
func LoadDialectProfile(path string) (*dialectprofile.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open dialect profile file %q: %w", path, err)
	}
	defer f.Close()
	return DecodeDialectProfile(f)
}

// DecodeDialectProfile reads a dialect profile declaration from r.
func DecodeDialectProfile(r io.Reader) (*dialectprofile.Profile, error) {
	var tp tomlDialectProfile
	if _, err := toml.NewDecoder(r).Decode(&tp); err != nil {
		return nil, fmt.Errorf("config: decode dialect profile: %w", err)
	}

	b := dialectprofile.NewBuilder(tp.Target)
	for _, name := range tp.Capabilities {
		enable, ok := capabilityByName[name]
		if !ok {
			return nil, fmt.Errorf("config: dialect profile: unknown capability %q", name)
		}
		b = enable(b)
	}
	if tp.MaxJoinDepth > 0 {
		b = b.MaxJoinDepth(tp.MaxJoinDepth)
	}
	if len(tp.AllowedTables) > 0 {
		b = b.AllowTables(tp.AllowedTables...)
	}
	if len(tp.AllowedFunctions) > 0 {
		b = b.AllowFunctions(tp.AllowedFunctions...)
	}

	return b.Build()
}
