package compile

import (
	"strings"

	"queryguard/internal/queryplan"
)

// defaultFuncCall renders NAME(build(arg0), build(arg1), ...), the shared
// fallback every dialect uses for a function it does not special-case.
func defaultFuncCall(name string, args []queryplan.Operand, build ArgBuilder) (string, error) {
	rendered := make([]string, len(args))
	for i, a := range args {
		s, err := build(a)
		if err != nil {
			return "", err
		}
		rendered[i] = s
	}
	return name + "(" + strings.Join(rendered, ", ") + ")", nil
}

// literalStringArg reports whether op is a ValueOperand wrapping a string,
// returning that string. Used by DATE_PART-style rewrites that need a
// syntactic keyword rather than a bound parameter for one argument.
func literalStringArg(op queryplan.Operand) (string, bool) {
	v, ok := op.(queryplan.ValueOperand)
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}
