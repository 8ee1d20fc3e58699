package config

import (
	"fmt"
	"io"
	"os"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"

	"queryguard/internal/policy"
)

type tomlTablePolicy struct {
	ParamBoundColumns map[string]string `toml:"param_bound_columns"`
	DeniedColumns     []string          `toml:"denied_columns"`
}

type tomlPolicy struct {
	InjectMissingParams *bool                      `toml:"inject_missing_params"`
	DefaultLimit        *int                       `toml:"default_limit"`
	Tables              map[string]tomlTablePolicy `toml:"tables"`
}

// defaultPolicy is overlaid with every decoded file: injection is on by
// default (an unsatisfiable tenant filter should fail loudly, not compile
// silently) and a conservative default row cap applies unless a file opts
// out by setting default_limit to a value, including 0 meaning "no cap"
// would require a tri-state the TOML format doesn't carry here, so a
// deployment that truly wants no cap sets an explicit large value.
var defaultPolicy = policy.Config{
	InjectMissingParams: true,
	DefaultLimit:        intPtr(1000),
	Tables:              map[string]policy.TablePolicy{},
}

func intPtr(v int) *int { return &v }

// LoadPolicy reads a policy declaration from a TOML file, merging it over
// defaultPolicy with dario.cat/mergo so a deployment only has to state the
// knobs it wants to change.
func LoadPolicy(path string) (*policy.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open policy file %q: %w", path, err)
	}
	defer f.Close()
	return DecodePolicy(f)
}

// DecodePolicy reads a policy declaration from r.
func DecodePolicy(r io.Reader) (*policy.Config, error) {
	var tp tomlPolicy
	if _, err := toml.NewDecoder(r).Decode(&tp); err != nil {
		return nil, fmt.Errorf("config: decode policy: %w", err)
	}

	merged := defaultPolicy
	if tp.InjectMissingParams != nil {
		merged.InjectMissingParams = *tp.InjectMissingParams
	}
	if tp.DefaultLimit != nil {
		merged.DefaultLimit = tp.DefaultLimit
	}

	// Tables is overlaid with mergo.WithOverride: a table named in the file
	// replaces the default entry of the same name as a whole (its fields
	// are not merged one by one); default tables the file does not name
	// are kept.
	merged.Tables = map[string]policy.TablePolicy{}
	for k, v := range defaultPolicy.Tables {
		merged.Tables[k] = v
	}
	fileTables := map[string]policy.TablePolicy{}
	for name, tbl := range tp.Tables {
		denied := make(map[string]bool, len(tbl.DeniedColumns))
		for _, c := range tbl.DeniedColumns {
			denied[c] = true
		}
		fileTables[name] = policy.TablePolicy{
			ParamBoundColumns: tbl.ParamBoundColumns,
			DeniedColumns:     denied,
		}
	}
	if err := mergo.Merge(&merged.Tables, fileTables, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merge policy table overrides: %w", err)
	}

	return &merged, nil
}
