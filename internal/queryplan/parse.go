package queryplan

import (
	"encoding/json"
	"fmt"
	"strings"

	"queryguard/internal/core"
)

// ParseOptions bounds the parser against hostile input — an untrusted
// planner's JSON crosses this boundary before anything else touches it.
type ParseOptions struct {
	// MaxPlanBytes caps the raw input size. Zero means DefaultMaxPlanBytes.
	MaxPlanBytes int
	// MaxDepth caps nested-plan/operand/predicate recursion. Zero means
	// DefaultMaxDepth.
	MaxDepth int
}

// Defaults for ParseOptions, per the size/recursion bound this parser must
// enforce before any clause-specific validation runs.
const (
	DefaultMaxPlanBytes = 1 << 20 // 1 MiB
	DefaultMaxDepth     = 64
)

func (o ParseOptions) withDefaults() ParseOptions {
	if o.MaxPlanBytes <= 0 {
		o.MaxPlanBytes = DefaultMaxPlanBytes
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// ParsePlan parses a QueryPlan document using default size/depth bounds.
func ParsePlan(data []byte) (*Plan, error) {
	return ParsePlanJSON(data, ParseOptions{})
}

// ParsePlanJSON parses a QueryPlan document from raw JSON bytes, enforcing
// opts' size and recursion bounds. The parser never consults a schema; it
// only checks structural well-formedness.
func ParsePlanJSON(data []byte, opts ParseOptions) (*Plan, error) {
	opts = opts.withDefaults()
	if len(data) > opts.MaxPlanBytes {
		return nil, core.NewParseError("parse.plan_too_large", "$",
			fmt.Sprintf("%d bytes", len(data)),
			fmt.Sprintf("<= %d bytes", opts.MaxPlanBytes))
	}

	var raw json.RawMessage = data
	p := &parser{maxDepth: opts.MaxDepth}
	obj, err := p.decodeObject(raw, "$")
	if err != nil {
		return nil, err
	}
	return p.parsePlan(obj, "$", 0)
}

type parser struct {
	maxDepth int
}

func (p *parser) checkDepth(path string, depth int) error {
	if depth > p.maxDepth {
		return core.NewParseError("parse.max_depth_exceeded", path,
			fmt.Sprintf("depth %d", depth), fmt.Sprintf("<= %d", p.maxDepth))
	}
	return nil
}

// decodeObject unmarshals raw into a JSON object, preserving each member
// as raw bytes for further tag-driven dispatch.
func (p *parser) decodeObject(raw json.RawMessage, path string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, core.NewParseError("parse.invalid_json", path, describeJSON(raw), "object")
	}
	return obj, nil
}

func describeJSON(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 40 {
		s = s[:40] + "…"
	}
	return s
}

func unknownKeys(obj map[string]json.RawMessage, allowed map[string]bool) []string {
	var bad []string
	for k := range obj {
		if !allowed[k] {
			bad = append(bad, k)
		}
	}
	return bad
}

var planKeys = map[string]bool{
	"WITH": true, "SELECT": true, "FROM": true, "JOIN": true, "WHERE": true,
	"GROUP_BY": true, "HAVING": true, "WINDOW": true, "ORDER_BY": true,
	"LIMIT": true, "OFFSET": true, "SET_OP": true,
}

func (p *parser) parsePlan(obj map[string]json.RawMessage, path string, depth int) (*Plan, error) {
	if err := p.checkDepth(path, depth); err != nil {
		return nil, err
	}
	if bad := unknownKeys(obj, planKeys); len(bad) > 0 {
		return nil, core.NewParseError("parse.unknown_key", path+"."+bad[0], bad[0], "a recognized clause")
	}

	plan := &Plan{}

	if raw, ok := obj["WITH"]; ok {
		entries, err := p.parseWith(raw, path+".WITH", depth)
		if err != nil {
			return nil, err
		}
		plan.With = entries
	}

	selectRaw, ok := obj["SELECT"]
	if !ok {
		return nil, core.NewParseError("parse.missing_field", path, "<absent>", "SELECT")
	}
	items, err := p.parseSelect(selectRaw, path+".SELECT", depth)
	if err != nil {
		return nil, err
	}
	plan.Select = items

	fromRaw, ok := obj["FROM"]
	if !ok {
		return nil, core.NewParseError("parse.missing_field", path, "<absent>", "FROM")
	}
	from, err := p.parseFrom(fromRaw, path+".FROM", depth)
	if err != nil {
		return nil, err
	}
	plan.From = from

	if raw, ok := obj["JOIN"]; ok {
		joins, err := p.parseJoins(raw, path+".JOIN")
		if err != nil {
			return nil, err
		}
		plan.Join = joins
	}

	if raw, ok := obj["WHERE"]; ok {
		pred, err := p.parsePredicate(raw, path+".WHERE", depth+1)
		if err != nil {
			return nil, err
		}
		plan.Where = pred
	}

	if raw, ok := obj["GROUP_BY"]; ok {
		operands, err := p.parseOperandList(raw, path+".GROUP_BY", depth+1)
		if err != nil {
			return nil, err
		}
		plan.GroupBy = operands
	}

	if raw, ok := obj["HAVING"]; ok {
		pred, err := p.parsePredicate(raw, path+".HAVING", depth+1)
		if err != nil {
			return nil, err
		}
		plan.Having = pred
	}

	if raw, ok := obj["WINDOW"]; ok {
		windows, err := p.parseWindows(raw, path+".WINDOW", depth)
		if err != nil {
			return nil, err
		}
		plan.Window = windows
	}

	if raw, ok := obj["ORDER_BY"]; ok {
		items, err := p.parseOrderBy(raw, path+".ORDER_BY", depth)
		if err != nil {
			return nil, err
		}
		plan.OrderBy = items
	}

	if raw, ok := obj["LIMIT"]; ok {
		lim, err := p.parseLimit(raw, path+".LIMIT")
		if err != nil {
			return nil, err
		}
		plan.Limit = lim
	}

	if raw, ok := obj["OFFSET"]; ok {
		off, err := p.parseOffset(raw, path+".OFFSET")
		if err != nil {
			return nil, err
		}
		plan.Offset = off
	}

	if raw, ok := obj["SET_OP"]; ok {
		setOp, err := p.parseSetOp(raw, path+".SET_OP", depth)
		if err != nil {
			return nil, err
		}
		plan.SetOp = setOp
	}

	return plan, nil
}

func (p *parser) parseWith(raw json.RawMessage, path string, depth int) ([]WithEntry, error) {
	var rawEntries []json.RawMessage
	if err := json.Unmarshal(raw, &rawEntries); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), "array")
	}
	entries := make([]WithEntry, 0, len(rawEntries))
	for i, r := range rawEntries {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, err := p.decodeObject(r, itemPath)
		if err != nil {
			return nil, err
		}
		nameRaw, ok := obj["name"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "name")
		}
		var name string
		if err := json.Unmarshal(nameRaw, &name); err != nil {
			return nil, core.NewParseError("parse.bad_shape", itemPath+".name", describeJSON(nameRaw), "string")
		}
		planRaw, ok := obj["plan"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "plan")
		}
		planObj, err := p.decodeObject(planRaw, itemPath+".plan")
		if err != nil {
			return nil, err
		}
		nested, err := p.parsePlan(planObj, itemPath+".plan", depth+1)
		if err != nil {
			return nil, err
		}
		recursive := false
		if recRaw, ok := obj["recursive"]; ok {
			if err := json.Unmarshal(recRaw, &recursive); err != nil {
				return nil, core.NewParseError("parse.bad_shape", itemPath+".recursive", describeJSON(recRaw), "bool")
			}
		}
		entries = append(entries, WithEntry{Name: name, Plan: nested, Recursive: recursive})
	}
	return entries, nil
}

func (p *parser) parseSelect(raw json.RawMessage, path string, depth int) ([]SelectItem, error) {
	var wildcard string
	if err := json.Unmarshal(raw, &wildcard); err == nil {
		if wildcard != "*" {
			return nil, core.NewParseError("parse.bad_shape", path, wildcard, `"*" or an array`)
		}
		return []SelectItem{{Wildcard: true}}, nil
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), `"*" or an array`)
	}
	if len(rawItems) == 0 {
		return nil, core.NewParseError("parse.empty_select", path, "[]", "a non-empty list")
	}
	items := make([]SelectItem, 0, len(rawItems))
	for i, r := range rawItems {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, err := p.decodeObject(r, itemPath)
		if err != nil {
			return nil, err
		}
		exprRaw, ok := obj["expr"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "expr")
		}
		expr, err := p.parseOperand(exprRaw, itemPath+".expr", depth+1)
		if err != nil {
			return nil, err
		}
		var alias string
		if aliasRaw, ok := obj["alias"]; ok {
			if err := json.Unmarshal(aliasRaw, &alias); err != nil {
				return nil, core.NewParseError("parse.bad_shape", itemPath+".alias", describeJSON(aliasRaw), "string")
			}
		}
		items = append(items, SelectItem{Expr: expr, Alias: alias})
	}
	return items, nil
}

func (p *parser) parseFrom(raw json.RawMessage, path string, depth int) (*FromClause, error) {
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	if tableRaw, ok := obj["table"]; ok {
		var table string
		if err := json.Unmarshal(tableRaw, &table); err != nil {
			return nil, core.NewParseError("parse.bad_shape", path+".table", describeJSON(tableRaw), "string")
		}
		return &FromClause{Table: table}, nil
	}
	if subRaw, ok := obj["subquery"]; ok {
		aliasRaw, ok := obj["alias"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", path, "<absent>", "alias")
		}
		var alias string
		if err := json.Unmarshal(aliasRaw, &alias); err != nil {
			return nil, core.NewParseError("parse.bad_shape", path+".alias", describeJSON(aliasRaw), "string")
		}
		subObj, err := p.decodeObject(subRaw, path+".subquery")
		if err != nil {
			return nil, err
		}
		nested, err := p.parsePlan(subObj, path+".subquery", depth+1)
		if err != nil {
			return nil, err
		}
		return &FromClause{Subquery: nested, Alias: alias}, nil
	}
	return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), `{"table": ...} or {"subquery": ..., "alias": ...}`)
}

var joinTypes = map[string]bool{JoinInner: true, JoinLeft: true, JoinRight: true, JoinFull: true}

func (p *parser) parseJoins(raw json.RawMessage, path string) ([]JoinSpec, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), "array")
	}
	joins := make([]JoinSpec, 0, len(rawItems))
	for i, r := range rawItems {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, err := p.decodeObject(r, itemPath)
		if err != nil {
			return nil, err
		}
		relRaw, ok := obj["rel"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "rel")
		}
		var rel string
		if err := json.Unmarshal(relRaw, &rel); err != nil {
			return nil, core.NewParseError("parse.bad_shape", itemPath+".rel", describeJSON(relRaw), "string")
		}
		typeRaw, ok := obj["type"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "type")
		}
		var joinType string
		if err := json.Unmarshal(typeRaw, &joinType); err != nil || !joinTypes[joinType] {
			return nil, core.NewParseError("parse.bad_shape", itemPath+".type", describeJSON(typeRaw), "INNER|LEFT|RIGHT|FULL")
		}
		var alias string
		if aliasRaw, ok := obj["alias"]; ok {
			if err := json.Unmarshal(aliasRaw, &alias); err != nil {
				return nil, core.NewParseError("parse.bad_shape", itemPath+".alias", describeJSON(aliasRaw), "string")
			}
		}
		joins = append(joins, JoinSpec{Rel: rel, Type: joinType, Alias: alias})
	}
	return joins, nil
}

func (p *parser) parseOperandList(raw json.RawMessage, path string, depth int) ([]Operand, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), "array")
	}
	operands := make([]Operand, 0, len(rawItems))
	for i, r := range rawItems {
		op, err := p.parseOperand(r, fmt.Sprintf("%s[%d]", path, i), depth+1)
		if err != nil {
			return nil, err
		}
		operands = append(operands, op)
	}
	return operands, nil
}

func (p *parser) parseWindows(raw json.RawMessage, path string, depth int) ([]WindowSpec, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), "array")
	}
	windows := make([]WindowSpec, 0, len(rawItems))
	for i, r := range rawItems {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, err := p.decodeObject(r, itemPath)
		if err != nil {
			return nil, err
		}
		nameRaw, ok := obj["name"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "name")
		}
		var name string
		if err := json.Unmarshal(nameRaw, &name); err != nil {
			return nil, core.NewParseError("parse.bad_shape", itemPath+".name", describeJSON(nameRaw), "string")
		}
		w := WindowSpec{Name: name}
		if pbRaw, ok := obj["partition_by"]; ok {
			partitionBy, err := p.parseOperandList(pbRaw, itemPath+".partition_by", depth+1)
			if err != nil {
				return nil, err
			}
			w.PartitionBy = partitionBy
		}
		if obRaw, ok := obj["order_by"]; ok {
			orderBy, err := p.parseOrderBy(obRaw, itemPath+".order_by", depth)
			if err != nil {
				return nil, err
			}
			w.OrderBy = orderBy
		}
		if frameRaw, ok := obj["frame"]; ok {
			var frame string
			if err := json.Unmarshal(frameRaw, &frame); err != nil {
				return nil, core.NewParseError("parse.bad_shape", itemPath+".frame", describeJSON(frameRaw), "string")
			}
			w.Frame = frame
		}
		windows = append(windows, w)
	}
	return windows, nil
}

var orderDirs = map[string]bool{DirAsc: true, DirDesc: true}

func (p *parser) parseOrderBy(raw json.RawMessage, path string, depth int) ([]OrderItem, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), "array")
	}
	items := make([]OrderItem, 0, len(rawItems))
	for i, r := range rawItems {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, err := p.decodeObject(r, itemPath)
		if err != nil {
			return nil, err
		}
		exprRaw, ok := obj["expr"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "expr")
		}
		expr, err := p.parseOperand(exprRaw, itemPath+".expr", depth+1)
		if err != nil {
			return nil, err
		}
		dirRaw, ok := obj["dir"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "dir")
		}
		var dir string
		if err := json.Unmarshal(dirRaw, &dir); err != nil || !orderDirs[dir] {
			return nil, core.NewParseError("parse.bad_shape", itemPath+".dir", describeJSON(dirRaw), "ASC|DESC")
		}
		items = append(items, OrderItem{Expr: expr, Dir: dir})
	}
	return items, nil
}

func (p *parser) parseLimitOrOffset(raw json.RawMessage, path string) (*int, string, error) {
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, "", err
	}
	if valRaw, ok := obj["value"]; ok {
		var v int
		if err := json.Unmarshal(valRaw, &v); err != nil || v < 0 {
			return nil, "", core.NewParseError("parse.bad_shape", path+".value", describeJSON(valRaw), "integer >= 0")
		}
		return &v, "", nil
	}
	if paramRaw, ok := obj["param"]; ok {
		var name string
		if err := json.Unmarshal(paramRaw, &name); err != nil {
			return nil, "", core.NewParseError("parse.bad_shape", path+".param", describeJSON(paramRaw), "string")
		}
		return nil, name, nil
	}
	return nil, "", core.NewParseError("parse.bad_shape", path, describeJSON(raw), `{"value": N} or {"param": NAME}`)
}

func (p *parser) parseLimit(raw json.RawMessage, path string) (*LimitClause, error) {
	v, name, err := p.parseLimitOrOffset(raw, path)
	if err != nil {
		return nil, err
	}
	return &LimitClause{Value: v, Param: name}, nil
}

func (p *parser) parseOffset(raw json.RawMessage, path string) (*OffsetClause, error) {
	v, name, err := p.parseLimitOrOffset(raw, path)
	if err != nil {
		return nil, err
	}
	return &OffsetClause{Value: v, Param: name}, nil
}

var setOps = map[string]bool{SetOpUnion: true, SetOpUnionAll: true, SetOpIntersect: true, SetOpExcept: true}

func (p *parser) parseSetOp(raw json.RawMessage, path string, depth int) (*SetOpClause, error) {
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	opRaw, ok := obj["op"]
	if !ok {
		return nil, core.NewParseError("parse.missing_field", path, "<absent>", "op")
	}
	var op string
	if err := json.Unmarshal(opRaw, &op); err != nil || !setOps[op] {
		return nil, core.NewParseError("parse.bad_shape", path+".op", describeJSON(opRaw), "UNION|UNION_ALL|INTERSECT|EXCEPT")
	}
	rightRaw, ok := obj["right"]
	if !ok {
		return nil, core.NewParseError("parse.missing_field", path, "<absent>", "right")
	}
	rightObj, err := p.decodeObject(rightRaw, path+".right")
	if err != nil {
		return nil, err
	}
	right, err := p.parsePlan(rightObj, path+".right", depth+1)
	if err != nil {
		return nil, err
	}
	return &SetOpClause{Op: op, Right: right}, nil
}

// --- Operand parsing ---

var operandTags = map[string]bool{"col": true, "value": true, "param": true, "func": true, "case": true, "subquery": true}

func (p *parser) parseOperand(raw json.RawMessage, path string, depth int) (Operand, error) {
	if err := p.checkDepth(path, depth); err != nil {
		return nil, err
	}
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	if len(obj) != 1 {
		return nil, core.NewParseError("parse.bad_operand_shape", path, fmt.Sprintf("%d keys", len(obj)), "exactly one tag key")
	}
	for tag, payload := range obj {
		if !operandTags[tag] {
			return nil, core.NewParseError("parse.unknown_operand_tag", path, tag, "col|value|param|func|case|subquery")
		}
		switch tag {
		case "col":
			return p.parseColOperand(payload, path)
		case "value":
			return p.parseValueOperand(payload, path)
		case "param":
			return p.parseParamOperand(payload, path)
		case "func":
			return p.parseFuncOperand(payload, path, depth)
		case "case":
			return p.parseCaseOperand(payload, path, depth)
		case "subquery":
			return p.parseSubqueryOperand(payload, path, depth)
		}
	}
	panic("unreachable")
}

// parseSubqueryOperand accepts the same {"subquery": {...plan...}} shape
// an InPredicate/ExistsPredicate subquery uses, so a scalar subquery
// comparison parses into a typed tree instead of failing as an unknown
// operand tag. validate.validateOperand rejects every SubqueryOperand it
// sees with the specific validate.scalar_subquery_unsupported code.
func (p *parser) parseSubqueryOperand(raw json.RawMessage, path string, depth int) (Operand, error) {
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	nested, err := p.parsePlan(obj, path, depth+1)
	if err != nil {
		return nil, err
	}
	return SubqueryOperand{Plan: nested}, nil
}

func (p *parser) parseColOperand(raw json.RawMessage, path string) (Operand, error) {
	var ref string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, core.NewParseError("parse.bad_column_ref", path, describeJSON(raw), `"table.column"`)
	}
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], ".") {
		return nil, core.NewParseError("parse.bad_column_ref", path, ref, `"table.column"`)
	}
	return ColOperand{Table: parts[0], Column: parts[1]}, nil
}

func (p *parser) parseValueOperand(raw json.RawMessage, path string) (Operand, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, core.NewParseError("parse.bad_value", path, describeJSON(raw), "string|number|bool|null")
	}
	return ValueOperand{Value: v}, nil
}

func (p *parser) parseParamOperand(raw json.RawMessage, path string) (Operand, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), "string")
	}
	return ParamOperand{Name: name}, nil
}

func (p *parser) parseFuncOperand(raw json.RawMessage, path string, depth int) (Operand, error) {
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	nameRaw, ok := obj["func"]
	if !ok {
		return nil, core.NewParseError("parse.missing_field", path, "<absent>", "func")
	}
	var name string
	if err := json.Unmarshal(nameRaw, &name); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path+".func", describeJSON(nameRaw), "string")
	}
	var args []Operand
	if argsRaw, ok := obj["args"]; ok {
		args, err = p.parseOperandList(argsRaw, path+".args", depth+1)
		if err != nil {
			return nil, err
		}
	}
	return FuncOperand{Func: name, Args: args}, nil
}

func (p *parser) parseCaseOperand(raw json.RawMessage, path string, depth int) (Operand, error) {
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	whenRaw, ok := obj["when"]
	if !ok {
		return nil, core.NewParseError("parse.missing_field", path, "<absent>", "when")
	}
	var rawWhens []json.RawMessage
	if err := json.Unmarshal(whenRaw, &rawWhens); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path+".when", describeJSON(whenRaw), "array")
	}
	if len(rawWhens) == 0 {
		return nil, core.NewParseError("parse.empty_case", path+".when", "[]", "a non-empty list")
	}
	whens := make([]WhenClause, 0, len(rawWhens))
	for i, r := range rawWhens {
		itemPath := fmt.Sprintf("%s.when[%d]", path, i)
		wobj, err := p.decodeObject(r, itemPath)
		if err != nil {
			return nil, err
		}
		condRaw, ok := wobj["cond"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "cond")
		}
		cond, err := p.parsePredicate(condRaw, itemPath+".cond", depth+1)
		if err != nil {
			return nil, err
		}
		thenRaw, ok := wobj["then"]
		if !ok {
			return nil, core.NewParseError("parse.missing_field", itemPath, "<absent>", "then")
		}
		then, err := p.parseOperand(thenRaw, itemPath+".then", depth+1)
		if err != nil {
			return nil, err
		}
		whens = append(whens, WhenClause{Cond: cond, Then: then})
	}
	c := CaseOperand{When: whens}
	if elseRaw, ok := obj["else"]; ok {
		elseOperand, err := p.parseOperand(elseRaw, path+".else", depth+1)
		if err != nil {
			return nil, err
		}
		c.Else = elseOperand
	}
	return c, nil
}

// --- Predicate parsing ---

var binaryPredicateOps = map[string]bool{
	OpEQ: true, OpNEQ: true, OpLT: true, OpLTE: true, OpGT: true, OpGTE: true,
	OpLike: true, OpILike: true,
}
var unaryPredicateOps = map[string]bool{OpIsNull: true, OpIsNotNull: true}
var setPredicateOps = map[string]bool{OpIn: true, OpNotIn: true}
var existsPredicateOps = map[string]bool{OpExists: true, OpNotExists: true}

func (p *parser) parsePredicate(raw json.RawMessage, path string, depth int) (Predicate, error) {
	if err := p.checkDepth(path, depth); err != nil {
		return nil, err
	}
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	if len(obj) != 1 {
		return nil, core.NewParseError("parse.bad_predicate_shape", path, fmt.Sprintf("%d keys", len(obj)), "exactly one operator key")
	}
	for op, payload := range obj {
		switch {
		case binaryPredicateOps[op]:
			operands, err := p.parseOperandList(payload, path+"."+op, depth)
			if err != nil {
				return nil, err
			}
			if len(operands) != 2 {
				return nil, core.NewParseError("parse.bad_arity", path+"."+op, fmt.Sprintf("%d operands", len(operands)), "exactly 2")
			}
			return BinaryPredicate{Op: op, Left: operands[0], Right: operands[1]}, nil

		case unaryPredicateOps[op]:
			operands, err := p.parseOperandList(payload, path+"."+op, depth)
			if err != nil {
				return nil, err
			}
			if len(operands) != 1 {
				return nil, core.NewParseError("parse.bad_arity", path+"."+op, fmt.Sprintf("%d operands", len(operands)), "exactly 1")
			}
			return UnaryPredicate{Op: op, Operand: operands[0]}, nil

		case op == "BETWEEN":
			operands, err := p.parseOperandList(payload, path+".BETWEEN", depth)
			if err != nil {
				return nil, err
			}
			if len(operands) != 3 {
				return nil, core.NewParseError("parse.bad_arity", path+".BETWEEN", fmt.Sprintf("%d operands", len(operands)), "exactly 3")
			}
			return BetweenPredicate{Operand: operands[0], Low: operands[1], High: operands[2]}, nil

		case op == OpAnd || op == OpOr:
			preds, err := p.parsePredicateList(payload, path+"."+op, depth)
			if err != nil {
				return nil, err
			}
			if len(preds) < 2 {
				return nil, core.NewParseError("parse.bad_arity", path+"."+op, fmt.Sprintf("%d predicates", len(preds)), ">= 2")
			}
			return LogicalPredicate{Op: op, Predicates: preds}, nil

		case op == "NOT":
			preds, err := p.parsePredicateList(payload, path+".NOT", depth)
			if err != nil {
				return nil, err
			}
			if len(preds) != 1 {
				return nil, core.NewParseError("parse.bad_arity", path+".NOT", fmt.Sprintf("%d predicates", len(preds)), "exactly 1")
			}
			return NotPredicate{Predicate: preds[0]}, nil

		case setPredicateOps[op]:
			return p.parseInPredicate(op, payload, path+"."+op, depth)

		case existsPredicateOps[op]:
			planObj, err := p.decodeObject(payload, path+"."+op)
			if err != nil {
				return nil, err
			}
			nested, err := p.parsePlan(planObj, path+"."+op, depth+1)
			if err != nil {
				return nil, err
			}
			return ExistsPredicate{Op: op, Subquery: nested}, nil

		default:
			args, err := p.parseOperandList(payload, path+"."+op, depth)
			if err != nil {
				return nil, err
			}
			return ExtensionPredicate{Op: op, Args: args}, nil
		}
	}
	panic("unreachable")
}

func (p *parser) parsePredicateList(raw json.RawMessage, path string, depth int) ([]Predicate, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), "array")
	}
	preds := make([]Predicate, 0, len(rawItems))
	for i, r := range rawItems {
		pred, err := p.parsePredicate(r, fmt.Sprintf("%s[%d]", path, i), depth+1)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

func (p *parser) parseInPredicate(op string, raw json.RawMessage, path string, depth int) (Predicate, error) {
	obj, err := p.decodeObject(raw, path)
	if err != nil {
		return nil, err
	}
	leftRaw, ok := obj["left"]
	if !ok {
		return nil, core.NewParseError("parse.missing_field", path, "<absent>", "left")
	}
	left, err := p.parseOperand(leftRaw, path+".left", depth+1)
	if err != nil {
		return nil, err
	}
	if listRaw, ok := obj["list"]; ok {
		list, err := p.parseOperandList(listRaw, path+".list", depth+1)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, core.NewParseError("parse.empty_list", path+".list", "[]", "a non-empty list")
		}
		return InPredicate{Op: op, Left: left, List: list}, nil
	}
	if subRaw, ok := obj["subquery"]; ok {
		subObj, err := p.decodeObject(subRaw, path+".subquery")
		if err != nil {
			return nil, err
		}
		nested, err := p.parsePlan(subObj, path+".subquery", depth+1)
		if err != nil {
			return nil, err
		}
		return InPredicate{Op: op, Left: left, Subquery: nested}, nil
	}
	return nil, core.NewParseError("parse.bad_shape", path, describeJSON(raw), `{"left": ..., "list": [...]} or {"left": ..., "subquery": ...}`)
}
