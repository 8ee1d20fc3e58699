package compile

import (
	"fmt"
	"strings"

	"queryguard/internal/queryplan"
)

func init() {
	RegisterCompiler("sqlite", func() Compiler { return NewSQLiteCompiler() })
}

// SQLiteCompiler renders SQL with double-quoted identifiers and named
// ":name" placeholders.
type SQLiteCompiler struct{}

// NewSQLiteCompiler returns a SQLite Compiler.
func NewSQLiteCompiler() *SQLiteCompiler { return &SQLiteCompiler{} }

func (c *SQLiteCompiler) DialectName() string { return "sqlite" }

// QuoteIdentifier double-quotes name, doubling any embedded double quote.
func (c *SQLiteCompiler) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, `"`, `""`)
	return `"` + name + `"`
}

func (c *SQLiteCompiler) ParamPlaceholder(name string) string {
	return fmt.Sprintf(":%s", name)
}

// LikeOperator maps ILIKE to a lowercased LIKE comparison; SQLite has no
// case-insensitive LIKE operator of its own.
func (c *SQLiteCompiler) LikeOperator(op string) (string, bool) {
	if op == "ILIKE" {
		return "LIKE", true
	}
	return "LIKE", false
}

func (c *SQLiteCompiler) BuildFuncCall(name string, args []queryplan.Operand, build ArgBuilder) (string, error) {
	return defaultFuncCall(name, args, build)
}
