// Package validate checks a parsed QueryPlan against a SchemaSnapshot and a
// DialectProfile: every table/column reference resolves, every clause's
// capability is enabled, and every operator/predicate has correct arity and
// scope. It never mutates the plan; policy injection happens afterward in
// package policy.
package validate

import (
	"queryguard/internal/core"
	"queryguard/internal/dialectprofile"
)

// tableScope is what a name resolves to within a scope frame: either a
// real schema table, or a derived table (CTE, subquery, or set-op branch)
// whose exposed columns were computed from its SELECT list.
type tableScope struct {
	real     *core.Table
	columns  map[string]bool
	wildcard bool // true if the derived table's SELECT was "*": any column name is accepted
}

func (s tableScope) hasColumn(name string) bool {
	if s.real != nil {
		_, ok := s.real.FindColumn(name)
		return ok
	}
	if s.wildcard {
		return true
	}
	return s.columns[name]
}

// scopeFrame maps the table/alias names visible at one nesting level to
// what they resolve to.
type scopeFrame map[string]tableScope

// ScopeStack is a stack of scopeFrames. A correlated subquery (EXISTS, IN
// subquery) pushes a frame that can see every outer frame, for resolving
// correlated column references; a non-correlated subquery (FROM subquery,
// CTE body, SET_OP branch) is validated against a stack containing only
// its own frame.
type ScopeStack struct {
	frames []scopeFrame
}

// NewScopeStack returns an empty stack.
func NewScopeStack() *ScopeStack {
	return &ScopeStack{}
}

// Push adds a new, empty frame on top of the stack and returns it so the
// caller can populate it as names come into scope.
func (s *ScopeStack) Push() scopeFrame {
	f := scopeFrame{}
	s.frames = append(s.frames, f)
	return f
}

// Pop removes the top frame. Every Push must be matched by a Pop once that
// frame's clauses have been validated.
func (s *ScopeStack) Pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// Resolve looks up a table/alias name, searching from the innermost frame
// outward.
func (s *ScopeStack) Resolve(name string) (tableScope, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if ts, ok := s.frames[i][name]; ok {
			return ts, true
		}
	}
	return tableScope{}, false
}

// clone returns a stack holding a copy of the frame slice (the frame maps
// themselves are shared), safe to use as the starting point for a
// correlated subquery's own Push/Pop pair without aliasing the parent's
// frames slice.
func (s *ScopeStack) clone() *ScopeStack {
	frames := make([]scopeFrame, len(s.frames))
	copy(frames, s.frames)
	return &ScopeStack{frames: frames}
}

// Context threads the immutable validation inputs and the mutable scope
// stack through the mutually recursive validator functions.
type Context struct {
	Snapshot *core.SchemaSnapshot
	Profile  *dialectprofile.Profile
	Scope    *ScopeStack

	// recursiveName/recursiveScope carry a recursive CTE's own name
	// through isolation boundaries (SET_OP branches, nested FROM
	// subqueries) so its step branch can self-reference it even though
	// it isn't a real schema table and the isolation would otherwise
	// hide it. Empty outside the body of a recursive WITH entry.
	recursiveName  string
	recursiveScope tableScope
}

// newCorrelatedChild returns a Context for validating a correlated nested
// plan: it shares Snapshot/Profile and starts from a copy of the current
// scope stack so the nested plan can resolve outer columns.
func (c *Context) newCorrelatedChild() *Context {
	return &Context{
		Snapshot: c.Snapshot, Profile: c.Profile, Scope: c.Scope.clone(),
		recursiveName: c.recursiveName, recursiveScope: c.recursiveScope,
	}
}

// newIsolatedChild returns a Context for validating a non-correlated
// nested plan (FROM subquery, CTE body, SET_OP branch): it shares
// Snapshot/Profile but starts from an empty scope stack. A recursive
// CTE's self-reference is preserved across the isolation boundary.
func (c *Context) newIsolatedChild() *Context {
	return &Context{
		Snapshot: c.Snapshot, Profile: c.Profile, Scope: NewScopeStack(),
		recursiveName: c.recursiveName, recursiveScope: c.recursiveScope,
	}
}
