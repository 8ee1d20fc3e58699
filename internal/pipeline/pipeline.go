// Package pipeline composes the five-stage request flow — parse, validate,
// apply policy, compile, return (sql, params) — the same "parse then
// analyze then execute" composition the teacher's internal/apply.Applier
// uses, minus the execution step this system never performs itself.
package pipeline

import (
	"queryguard/internal/compile"
	"queryguard/internal/core"
	"queryguard/internal/dialectprofile"
	"queryguard/internal/policy"
	"queryguard/internal/queryplan"
	"queryguard/internal/validate"
)

// ValidateAndCompile runs an untrusted planner's QueryPlan JSON document
// through every enforcement stage and returns parameterized SQL, or the
// first error any stage raises. Each stage's error type identifies where
// in the pipeline the plan was rejected: core.ParseError, core.ValidationError
// (from validate or policy's deny-list/OR-bypass checks), or
// core.CompilationError.
func ValidateAndCompile(planJSON []byte, snapshot *core.SchemaSnapshot, profile *dialectprofile.Profile, policyCfg *policy.Config) (*compile.CompiledSQL, error) {
	plan, err := queryplan.ParsePlan(planJSON)
	if err != nil {
		return nil, err
	}

	if err := validate.Validate(plan, snapshot, profile); err != nil {
		return nil, err
	}

	enforced, requiredParams, err := policy.Apply(plan, snapshot, *policyCfg)
	if err != nil {
		return nil, err
	}

	return compile.Compile(enforced, snapshot, profile, requiredParams)
}
