// Package dialectprofile describes the SQL feature surface a QueryPlan is
// allowed to use: which clauses/capabilities are enabled, the compilation
// target, the function allowlist, and the table whitelist. Profiles are
// built once via Builder and treated as read-only afterward, the same
// build-once/share-many lifecycle the teacher gives its dialect registry.
package dialectprofile

import (
	"sort"

	"queryguard/internal/core"
)

// Capability names a togglable SQL feature. New capabilities are added here
// and wired into the dependency table in capabilityDependencies.
type Capability string

const (
	CapCTEs               Capability = "ctes"
	CapWindowFunctions    Capability = "window_functions"
	CapAggregations       Capability = "aggregations"
	CapSubqueries         Capability = "subqueries"
	CapJoins              Capability = "joins"
	CapSetOperations      Capability = "set_operations"
	CapOffsetWithoutLimit Capability = "offset_without_limit"
)

// capabilityDependencies mirrors spec §3.2's dependency table: a capability
// on the left cannot be enabled unless every capability on the right is
// also enabled. Capabilities absent from this map have no dependency.
var capabilityDependencies = map[Capability][]Capability{
	CapCTEs:            {CapSubqueries},
	CapWindowFunctions: {CapAggregations},
}

// Profile is the immutable result of Builder.Build(). Its fields are
// unexported; callers only observe it through the query-plan-facing methods
// below so validators and compilers can't accidentally mutate a shared
// profile.
type Profile struct {
	target        string
	capabilities  map[Capability]bool
	maxJoinDepth  int
	allowedTables map[string]bool
	allowedFuncs  map[string]bool
}

// Target returns the compilation target identifier ("postgres", "sqlite",
// "mysql", ...).
func (p *Profile) Target() string { return p.target }

// Has reports whether a capability is enabled.
func (p *Profile) Has(c Capability) bool { return p.capabilities[c] }

// MaxJoinDepth returns the maximum number of JOIN entries a plan's FROM
// clause may carry.
func (p *Profile) MaxJoinDepth() int { return p.maxJoinDepth }

// TableAllowed reports whether a table name is in the whitelist. An empty
// whitelist means every table the schema declares is reachable.
func (p *Profile) TableAllowed(table string) bool {
	if len(p.allowedTables) == 0 {
		return true
	}
	return p.allowedTables[table]
}

// FunctionAllowed reports whether a scalar function name is in the
// allowlist. An empty allowlist means every function is reachable.
func (p *Profile) FunctionAllowed(name string) bool {
	if len(p.allowedFuncs) == 0 {
		return true
	}
	return p.allowedFuncs[name]
}

// Builder constructs a Profile fluently. Each capability method returns the
// same *Builder so calls chain; Build() validates the dependency graph once
// at the end, the same two-phase "accumulate then validate" shape as the
// teacher's migration options constructor.
type Builder struct {
	target        string
	capabilities  map[Capability]bool
	maxJoinDepth  int
	allowedTables []string
	allowedFuncs  []string
}

// NewBuilder starts a Profile builder for the given compilation target.
// max_join_depth defaults to 2 per spec §3.2.
func NewBuilder(target string) *Builder {
	return &Builder{
		target:       target,
		capabilities: make(map[Capability]bool),
		maxJoinDepth: 2,
	}
}

func (b *Builder) enable(c Capability) *Builder {
	b.capabilities[c] = true
	return b
}

// Ctes enables WITH (including recursive) clauses.
func (b *Builder) Ctes() *Builder { return b.enable(CapCTEs) }

// WindowFunctions enables the WINDOW clause and window function calls.
func (b *Builder) WindowFunctions() *Builder { return b.enable(CapWindowFunctions) }

// Aggregations enables GROUP BY, HAVING, and aggregate function calls.
func (b *Builder) Aggregations() *Builder { return b.enable(CapAggregations) }

// Subqueries enables subquery FROM items and EXISTS predicates.
func (b *Builder) Subqueries() *Builder { return b.enable(CapSubqueries) }

// Joins enables the JOIN clause and, per spec §3.5, unlocks ORDER BY.
func (b *Builder) Joins() *Builder { return b.enable(CapJoins) }

// SetOperations enables the SET_OP clause (UNION/UNION_ALL/INTERSECT/EXCEPT).
func (b *Builder) SetOperations() *Builder { return b.enable(CapSetOperations) }

// OffsetWithoutLimit enables an OFFSET clause with no accompanying LIMIT.
// Not part of spec.md's original capability table; added to resolve its
// third Open Question (see DESIGN.md).
func (b *Builder) OffsetWithoutLimit() *Builder { return b.enable(CapOffsetWithoutLimit) }

// MaxJoinDepth overrides the default join-depth ceiling.
func (b *Builder) MaxJoinDepth(n int) *Builder {
	b.maxJoinDepth = n
	return b
}

// AllowTables sets the table whitelist. Tables outside it are unreachable
// regardless of what the schema snapshot declares.
func (b *Builder) AllowTables(tables ...string) *Builder {
	b.allowedTables = append(b.allowedTables, tables...)
	return b
}

// AllowFunctions sets the scalar function allowlist.
func (b *Builder) AllowFunctions(funcs ...string) *Builder {
	b.allowedFuncs = append(b.allowedFuncs, funcs...)
	return b
}

// Build validates the capability dependency graph and returns the
// immutable Profile, or a *core.ProfileConfigError naming the first unmet
// dependency found. Dependencies are checked in a stable (sorted)
// capability order so the reported error is deterministic.
func (b *Builder) Build() (*Profile, error) {
	enabled := make([]Capability, 0, len(b.capabilities))
	for c, on := range b.capabilities {
		if on {
			enabled = append(enabled, c)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i] < enabled[j] })

	for _, c := range enabled {
		for _, dep := range capabilityDependencies[c] {
			if !b.capabilities[dep] {
				return nil, core.NewProfileConfigError(
					"profile.missing_dependency",
					string(c),
					"capability \""+string(c)+"\" requires \""+string(dep)+"\" to be enabled",
				)
			}
		}
	}

	p := &Profile{
		target:        b.target,
		capabilities:  make(map[Capability]bool, len(b.capabilities)),
		maxJoinDepth:  b.maxJoinDepth,
		allowedTables: make(map[string]bool, len(b.allowedTables)),
		allowedFuncs:  make(map[string]bool, len(b.allowedFuncs)),
	}
	for c, on := range b.capabilities {
		p.capabilities[c] = on
	}
	for _, t := range b.allowedTables {
		p.allowedTables[t] = true
	}
	for _, f := range b.allowedFuncs {
		p.allowedFuncs[f] = true
	}
	return p, nil
}
