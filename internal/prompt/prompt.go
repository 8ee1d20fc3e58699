// Package prompt builds the two prompt strings handed to the untrusted LLM
// planner: a system prompt describing the schema/dialect/policy surface it
// must stay within, and a user prompt carrying the question. It never
// touches a QueryPlan — its only inputs are the already-validated
// SchemaSnapshot and DialectProfile descriptions, the plain-text question,
// and a policy summary string, matching the one-render-function-per-section
// strings.Builder style the teacher's output formatters use.
package prompt

import (
	"fmt"
	"strings"

	"queryguard/internal/core"
	"queryguard/internal/dialectprofile"
)

// capabilityLabels orders the capabilities worth surfacing to the planner,
// independent of map iteration order.
var capabilityLabels = []struct {
	cap   dialectprofile.Capability
	label string
}{
	{dialectprofile.CapCTEs, "WITH (including recursive)"},
	{dialectprofile.CapWindowFunctions, "window functions / WINDOW clause"},
	{dialectprofile.CapAggregations, "GROUP BY / HAVING / aggregate functions"},
	{dialectprofile.CapSubqueries, "subquery FROM items and EXISTS predicates"},
	{dialectprofile.CapJoins, "JOIN"},
	{dialectprofile.CapSetOperations, "UNION / UNION_ALL / INTERSECT / EXCEPT"},
	{dialectprofile.CapOffsetWithoutLimit, "OFFSET without an accompanying LIMIT"},
}

// BuildComponents renders the system and user prompts for one planning
// request. snapshot and profile describe what the plan is allowed to
// reference; question is the caller's plain-text request; policySummary is
// a human-readable description of the tenant/ABAC rules already in force
// (the planner cannot see or influence policy enforcement itself, but
// knowing about it lets it avoid generating plans that Apply will reject).
func BuildComponents(snapshot *core.SchemaSnapshot, profile *dialectprofile.Profile, question, policySummary string) (system, user string) {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	writeSchemaSection(&sb, snapshot)
	writeDialectSection(&sb, profile)
	writePolicySection(&sb, policySummary)
	return sb.String(), buildUserPrompt(question)
}

const systemPreamble = `You translate a natural-language question into a single QueryPlan JSON
document. Only reference tables, columns, relationships, and functions
declared below. Never emit raw SQL; emit only the QueryPlan JSON grammar.

`

func writeSchemaSection(sb *strings.Builder, snapshot *core.SchemaSnapshot) {
	sb.WriteString("Schema:\n")
	for _, name := range snapshot.TableNames() {
		table, _ := snapshot.Table(name)
		writeTable(sb, table)
	}
	sb.WriteString("\n")
}

func writeTable(sb *strings.Builder, table *core.Table) {
	if table.Description != "" {
		fmt.Fprintf(sb, "- %s: %s\n", table.Name, table.Description)
	} else {
		fmt.Fprintf(sb, "- %s\n", table.Name)
	}
	for _, col := range table.Columns {
		writeColumn(sb, table.Name, col)
	}
}

func writeColumn(sb *strings.Builder, tableName string, col *core.Column) {
	nullability := "not null"
	if col.Nullable {
		nullability = "nullable"
	}
	if col.Description != "" {
		fmt.Fprintf(sb, "    %s.%s (%s, %s): %s\n", tableName, col.Name, col.SQLType, nullability, col.Description)
		return
	}
	fmt.Fprintf(sb, "    %s.%s (%s, %s)\n", tableName, col.Name, col.SQLType, nullability)
}

func writeDialectSection(sb *strings.Builder, profile *dialectprofile.Profile) {
	fmt.Fprintf(sb, "Dialect: %s\n", profile.Target())
	fmt.Fprintf(sb, "Max JOIN depth: %d\n", profile.MaxJoinDepth())

	var enabled []string
	for _, c := range capabilityLabels {
		if profile.Has(c.cap) {
			enabled = append(enabled, c.label)
		}
	}
	if len(enabled) == 0 {
		sb.WriteString("Enabled features: none beyond a plain SELECT/WHERE\n")
	} else {
		fmt.Fprintf(sb, "Enabled features: %s\n", strings.Join(enabled, "; "))
	}
	sb.WriteString("\n")
}

func writePolicySection(sb *strings.Builder, policySummary string) {
	if policySummary == "" {
		return
	}
	sb.WriteString("Policy in force (already enforced server-side, shown for context):\n")
	fmt.Fprintf(sb, "%s\n", policySummary)
}

func buildUserPrompt(question string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", question)
	return sb.String()
}
