package compile

import (
	"fmt"
	"strings"

	"queryguard/internal/queryplan"
)

func init() {
	RegisterCompiler("postgres", func() Compiler { return NewPostgresCompiler() })
}

// PostgresCompiler renders ANSI-leaning SQL with double-quoted identifiers
// and named "%(name)s" placeholders.
type PostgresCompiler struct{}

// NewPostgresCompiler returns a Postgres Compiler.
func NewPostgresCompiler() *PostgresCompiler { return &PostgresCompiler{} }

func (c *PostgresCompiler) DialectName() string { return "postgres" }

// QuoteIdentifier double-quotes name, doubling any embedded double quote.
func (c *PostgresCompiler) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, `"`, `""`)
	return `"` + name + `"`
}

func (c *PostgresCompiler) ParamPlaceholder(name string) string {
	return fmt.Sprintf("%%(%s)s", name)
}

// LikeOperator passes ILIKE through natively; Postgres is the one dialect
// that has it.
func (c *PostgresCompiler) LikeOperator(op string) (string, bool) {
	if op == "ILIKE" {
		return "ILIKE", false
	}
	return "LIKE", false
}

func (c *PostgresCompiler) BuildFuncCall(name string, args []queryplan.Operand, build ArgBuilder) (string, error) {
	return defaultFuncCall(name, args, build)
}
