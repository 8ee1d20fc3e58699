package policy

import (
	"queryguard/internal/core"
	"queryguard/internal/queryplan"
)

// rewritePredicateSubqueries walks pred for every IN/EXISTS predicate that
// carries a nested Plan and runs applyToPlan against it, returning a
// predicate tree with each such Plan replaced by its policy-enforced
// rewrite. It is the predicate-tree counterpart of applyToPlan's own
// recursion into WITH/FROM-subquery/SET_OP — together they reach every
// nested plan form the grammar allows. A nil predicate returns nil, nil,
// nil. Leaf predicates and IN lists are returned as they are; AND/OR/NOT
// nodes are always rebuilt around their rewritten children.
func rewritePredicateSubqueries(pred queryplan.Predicate, snapshot *core.SchemaSnapshot, cfg Config) (queryplan.Predicate, map[string]bool, error) {
	switch p := pred.(type) {
	case nil:
		return nil, nil, nil

	case queryplan.InPredicate:
		if p.Subquery == nil {
			return p, nil, nil
		}
		nested, req, err := applyToPlan(p.Subquery, snapshot, cfg, false)
		if err != nil {
			return nil, nil, err
		}
		return queryplan.InPredicate{Op: p.Op, Left: p.Left, List: p.List, Subquery: nested}, req, nil

	case queryplan.ExistsPredicate:
		nested, req, err := applyToPlan(p.Subquery, snapshot, cfg, false)
		if err != nil {
			return nil, nil, err
		}
		return queryplan.ExistsPredicate{Op: p.Op, Subquery: nested}, req, nil

	case queryplan.LogicalPredicate:
		required := map[string]bool{}
		newPreds := make([]queryplan.Predicate, len(p.Predicates))
		for i, sub := range p.Predicates {
			rewritten, req, err := rewritePredicateSubqueries(sub, snapshot, cfg)
			if err != nil {
				return nil, nil, err
			}
			newPreds[i] = rewritten
			mergeParamSet(required, req)
		}
		return queryplan.LogicalPredicate{Op: p.Op, Predicates: newPreds}, required, nil

	case queryplan.NotPredicate:
		rewritten, req, err := rewritePredicateSubqueries(p.Predicate, snapshot, cfg)
		if err != nil {
			return nil, nil, err
		}
		return queryplan.NotPredicate{Predicate: rewritten}, req, nil

	default:
		// BinaryPredicate, UnaryPredicate, BetweenPredicate, ExtensionPredicate:
		// their operands can never carry a Plan (a scalar subquery operand is
		// rejected by validate before policy ever runs), so there is nothing
		// to rewrite beneath them.
		return pred, nil, nil
	}
}
