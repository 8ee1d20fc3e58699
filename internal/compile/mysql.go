package compile

import (
	"fmt"
	"strings"

	"queryguard/internal/queryplan"
)

func init() {
	RegisterCompiler("mysql", func() Compiler { return NewMySQLCompiler() })
}

// MySQLCompiler renders SQL with backtick-quoted identifiers and named
// "%(name)s" placeholders. go-sql-driver/mysql binds only positional "?"
// parameters, so the placeholders must be rewritten before execution.
type MySQLCompiler struct{}

// NewMySQLCompiler returns a MySQL Compiler.
func NewMySQLCompiler() *MySQLCompiler { return &MySQLCompiler{} }

func (c *MySQLCompiler) DialectName() string { return "mysql" }

// QuoteIdentifier backtick-quotes name, doubling any embedded backtick.
func (c *MySQLCompiler) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "`", "``")
	return "`" + name + "`"
}

func (c *MySQLCompiler) ParamPlaceholder(name string) string {
	return fmt.Sprintf("%%(%s)s", name)
}

// LikeOperator maps ILIKE to a lowercased LIKE comparison; MySQL has no
// case-insensitive LIKE operator of its own (its default collations are
// already case-insensitive, but the plan may target a binary collation, so
// the rewrite still lowercases both sides to guarantee the semantics).
func (c *MySQLCompiler) LikeOperator(op string) (string, bool) {
	if op == "ILIKE" {
		return "LIKE", true
	}
	return "LIKE", false
}

// dateParts maps a DATE_PART part name to MySQL's EXTRACT unit keyword.
// Every listed part uses the unit of the same name; an unlisted part name
// is passed to EXTRACT unchanged.
var dateParts = map[string]string{
	"YEAR":    "YEAR",
	"MONTH":   "MONTH",
	"DAY":     "DAY",
	"HOUR":    "HOUR",
	"MINUTE":  "MINUTE",
	"SECOND":  "SECOND",
	"QUARTER": "QUARTER",
	"WEEK":    "WEEK",
}

// BuildFuncCall special-cases DATE_PART: 'YEAR' rewrites to MySQL's YEAR(x)
// shorthand; every other recognized part name falls back to MySQL's
// general-purpose EXTRACT(<unit> FROM x). Any other function name falls
// through to the default NAME(args...) rendering.
func (c *MySQLCompiler) BuildFuncCall(name string, args []queryplan.Operand, build ArgBuilder) (string, error) {
	if name != "DATE_PART" || len(args) != 2 {
		return defaultFuncCall(name, args, build)
	}

	part, ok := literalStringArg(args[0])
	if !ok {
		return defaultFuncCall(name, args, build)
	}

	target, err := build(args[1])
	if err != nil {
		return "", err
	}

	part = strings.ToUpper(part)
	if part == "YEAR" {
		return fmt.Sprintf("YEAR(%s)", target), nil
	}
	unit, ok := dateParts[part]
	if !ok {
		unit = part
	}
	return fmt.Sprintf("EXTRACT(%s FROM %s)", unit, target), nil
}
