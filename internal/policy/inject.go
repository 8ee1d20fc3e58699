package policy

import (
	"queryguard/internal/core"
	"queryguard/internal/queryplan"
)

// injectRequiredParams rebuilds WHERE's top-level conjunct list so every
// required binding is present, either because it was already there or
// because it gets appended. It never mutates the input tree: every
// touched node is a freshly allocated conjunct/AND wrapper.
func injectRequiredParams(where queryplan.Predicate, required []requiredBinding, injectMissing bool) (queryplan.Predicate, error) {
	conjuncts := flattenTopConjuncts(where)

	for _, b := range required {
		if conjunctListHasEquality(conjuncts, b) {
			continue
		}
		if !injectMissing {
			return nil, core.NewValidationError("policy.missing_required_param", "table", b.table, b.column,
				"required parameter binding is missing from WHERE")
		}
		conjuncts = append(conjuncts, queryplan.BinaryPredicate{
			Op:    queryplan.OpEQ,
			Left:  queryplan.ColOperand{Table: b.table, Column: b.column},
			Right: queryplan.ParamOperand{Name: b.param},
		})
	}

	switch len(conjuncts) {
	case 0:
		return nil, nil
	case 1:
		return conjuncts[0], nil
	default:
		return queryplan.LogicalPredicate{Op: queryplan.OpAnd, Predicates: conjuncts}, nil
	}
}

// flattenTopConjuncts returns where's top-level AND members, recursively
// flattening nested top-level ANDs. A non-AND predicate is a single
// conjunct. A nil WHERE has zero conjuncts.
func flattenTopConjuncts(where queryplan.Predicate) []queryplan.Predicate {
	if where == nil {
		return nil
	}
	and, ok := where.(queryplan.LogicalPredicate)
	if !ok || and.Op != queryplan.OpAnd {
		return []queryplan.Predicate{where}
	}
	var out []queryplan.Predicate
	for _, p := range and.Predicates {
		out = append(out, flattenTopConjuncts(p)...)
	}
	return out
}

func conjunctListHasEquality(conjuncts []queryplan.Predicate, b requiredBinding) bool {
	for _, c := range conjuncts {
		if isEqualityBinding(c, b) {
			return true
		}
	}
	return false
}

func isEqualityBinding(pred queryplan.Predicate, b requiredBinding) bool {
	bp, ok := pred.(queryplan.BinaryPredicate)
	if !ok || bp.Op != queryplan.OpEQ {
		return false
	}
	return matchesBinding(bp.Left, bp.Right, b) || matchesBinding(bp.Right, bp.Left, b)
}

func matchesBinding(col, param queryplan.Operand, b requiredBinding) bool {
	c, ok := col.(queryplan.ColOperand)
	if !ok || c.Table != b.table || c.Column != b.column {
		return false
	}
	p, ok := param.(queryplan.ParamOperand)
	return ok && p.Name == b.param
}

// checkORBypass enforces that no required binding is neutralised by
// disjunction: at every OR node, for each required binding whose table is
// referenced by at least one branch, every branch referencing that table
// must itself contain the matching equality conjunct somewhere in its
// subtree.
func checkORBypass(where queryplan.Predicate, required []requiredBinding) error {
	return walkForORBypass(where, required)
}

func walkForORBypass(pred queryplan.Predicate, required []requiredBinding) error {
	switch p := pred.(type) {
	case nil:
		return nil
	case queryplan.LogicalPredicate:
		if p.Op == queryplan.OpOr {
			for _, b := range required {
				referencing, satisfied := 0, 0
				for _, branch := range p.Predicates {
					if predicateReferencesTable(branch, b.table) {
						referencing++
						if predicateContainsEquality(branch, b) {
							satisfied++
						}
					}
				}
				if referencing > 0 && satisfied < referencing {
					return core.NewValidationError("policy.or_bypass", "table", b.table, b.column,
						"required predicate does not hold in every OR branch referencing the table")
				}
			}
		}
		for _, sub := range p.Predicates {
			if err := walkForORBypass(sub, required); err != nil {
				return err
			}
		}
		return nil
	case queryplan.NotPredicate:
		return walkForORBypass(p.Predicate, required)
	default:
		return nil
	}
}

func predicateReferencesTable(pred queryplan.Predicate, table string) bool {
	found := false
	walkPredicateColumns(pred, func(t, _ string) {
		if t == table {
			found = true
		}
	})
	return found
}

func predicateContainsEquality(pred queryplan.Predicate, b requiredBinding) bool {
	found := false
	var walk func(queryplan.Predicate)
	walk = func(p queryplan.Predicate) {
		if found || p == nil {
			return
		}
		if isEqualityBinding(p, b) {
			found = true
			return
		}
		switch v := p.(type) {
		case queryplan.LogicalPredicate:
			for _, sub := range v.Predicates {
				walk(sub)
			}
		case queryplan.NotPredicate:
			walk(v.Predicate)
		}
	}
	walk(pred)
	return found
}
