package validate

// builtinAggregateFuncs and builtinWindowFuncs are always callable
// regardless of the dialect profile's function allowlist, per spec: a
// func operand's name "must be in the dialect's function allowlist or a
// built-in aggregate/window function."
var builtinAggregateFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

var builtinWindowFuncs = map[string]bool{
	"ROW_NUMBER": true, "RANK": true, "DENSE_RANK": true,
	"LAG": true, "LEAD": true, "NTILE": true, "FIRST_VALUE": true, "LAST_VALUE": true,
}

func isBuiltinFunc(name string) bool {
	return builtinAggregateFuncs[name] || builtinWindowFuncs[name]
}

func isAggregateFunc(name string) bool {
	return builtinAggregateFuncs[name]
}
