// Package querysql translates criterion trees into parameterized SQLite SQL
// over the document store's attribute-value tables.
//
// It is the reference search executor: it consumes criteria only through
// criterion.Visitor, the same contract any other backend would implement.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/searchql/internal/criterion"
)

// Table and column names of the document store.
const (
	DocumentsTable = "documents"
	ValuesTable    = "document_values"
)

// Fragment is a SQL boolean expression and its parameters, in order.
type Fragment struct {
	SQL    string
	Params []any
}

// SQLCompiler compiles criterion trees to parameterized SQL for SQLite.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a criterion tree into a query selecting the ids of the
// tenant's matching documents.
// Returns (sql, params, error) tuple.
//
// MANDATORY: Every query includes ORDER BY with COLLATE BINARY.
func (c *SQLCompiler) Compile(tenant string, crit criterion.Criterion) (string, []any, error) {
	if crit == nil {
		return "", nil, fmt.Errorf("cannot compile nil criterion")
	}

	where, err := c.Predicate(crit)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT d.id FROM %s d WHERE d.tenant = ? AND %s ORDER BY %s",
		DocumentsTable,
		where.SQL,
		stableOrderKey())

	params := append([]any{tenant}, where.Params...)
	return sql, params, nil
}

// Predicate compiles a criterion to a WHERE fragment over documents d.
func (c *SQLCompiler) Predicate(crit criterion.Criterion) (Fragment, error) {
	return criterion.Accept[Fragment](crit, translator{})
}

// stableOrderKey returns the ORDER BY clause for a query.
// COLLATE BINARY ensures deterministic text ordering across SQLite versions.
func stableOrderKey() string {
	return "d.id ASC COLLATE BINARY"
}

// translator implements criterion.Visitor.
type translator struct{}

// exists wraps a condition on the value row v of field into a correlated
// subquery.
func exists(field, cond string, params ...any) Fragment {
	sql := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s v WHERE v.tenant = d.tenant AND v.doc_id = d.id AND v.path = ? AND %s)",
		ValuesTable, cond)
	return Fragment{SQL: sql, Params: append([]any{field}, params...)}
}

func (translator) VisitEquals(eq criterion.Equals) (Fragment, error) {
	col, param, err := valueColumn(eq.Value)
	if err != nil {
		return Fragment{}, fmt.Errorf("equals %s: %w", eq.Field, err)
	}
	return exists(eq.Field, "v."+col+" = ?", param), nil
}

func (translator) VisitBooleanMatch(bm criterion.BooleanMatch) (Fragment, error) {
	return exists(bm.Field, "v.bool_value = ?", bm.Value), nil
}

func (translator) VisitNumberMatch(nm criterion.NumberMatch) (Fragment, error) {
	col, param, err := valueColumn(nm.Value)
	if err != nil {
		return Fragment{}, fmt.Errorf("number match %s: %w", nm.Field, err)
	}
	return exists(nm.Field, "v."+col+" = ?", param), nil
}

func (translator) VisitPattern(p criterion.Pattern) (Fragment, error) {
	return exists(p.Field, "v.text_value GLOB ?", GlobPattern(p.Pattern)), nil
}

func (translator) VisitBetween(b criterion.Between) (Fragment, error) {
	if b.Lower == nil && b.Upper == nil {
		return Fragment{}, fmt.Errorf("between %s: no bounds", b.Field)
	}

	var conds []string
	var params []any
	column := ""

	for _, bound := range []struct {
		value     criterion.Value
		inclusive bool
		op        string
	}{
		{b.Lower, b.LowerInclusive, ">"},
		{b.Upper, b.UpperInclusive, "<"},
	} {
		if bound.value == nil {
			continue
		}
		col, param, err := valueColumn(bound.value)
		if err != nil {
			return Fragment{}, fmt.Errorf("between %s: %w", b.Field, err)
		}
		if column != "" && column != col {
			return Fragment{}, fmt.Errorf("between %s: bounds of different types", b.Field)
		}
		column = col

		op := bound.op
		if bound.inclusive {
			op += "="
		}
		conds = append(conds, fmt.Sprintf("v.%s %s ?", col, op))
		params = append(params, param)
	}

	return exists(b.Field, strings.Join(conds, " AND "), params...), nil
}

func (t translator) VisitAnd(and criterion.And) (Fragment, error) {
	if len(and.Children) == 0 {
		return Fragment{SQL: "1 = 1"}, nil // vacuous truth
	}
	return t.join(and.Children, " AND ")
}

func (t translator) VisitOr(or criterion.Or) (Fragment, error) {
	if len(or.Children) == 0 {
		return Fragment{SQL: "1 = 0"}, nil
	}
	return t.join(or.Children, " OR ")
}

func (t translator) VisitNot(not criterion.Not) (Fragment, error) {
	inner, err := criterion.Accept[Fragment](not.Child, t)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: "NOT (" + inner.SQL + ")", Params: inner.Params}, nil
}

func (translator) VisitAll(criterion.All) (Fragment, error) {
	return Fragment{SQL: "1 = 1"}, nil
}

func (t translator) join(children []criterion.Criterion, sep string) (Fragment, error) {
	var sqlParts []string
	var allParams []any

	for _, child := range children {
		f, err := criterion.Accept[Fragment](child, t)
		if err != nil {
			return Fragment{}, err
		}
		sqlParts = append(sqlParts, f.SQL)
		allParams = append(allParams, f.Params...)
	}

	return Fragment{SQL: "(" + strings.Join(sqlParts, sep) + ")", Params: allParams}, nil
}

// valueColumn picks the typed value column for v and converts v to a Go
// native type for the SQL parameter.
func valueColumn(v criterion.Value) (string, any, error) {
	switch val := v.(type) {
	case criterion.StringValue:
		return "text_value", string(val), nil
	case criterion.DateValue:
		// Fixed-width UTC text sorts chronologically.
		return "text_value", val.String(), nil
	case criterion.Number:
		if val.IsIntegral() {
			return "int_value", val.Int64(), nil
		}
		return "num_value", val.Float64(), nil
	case nil:
		return "", nil, fmt.Errorf("missing value")
	default:
		return "", nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}

// GlobPattern converts a wildcard pattern to a SQLite GLOB pattern. An
// unescaped '*' matches any run of characters; every other character,
// including a backslash-escaped '*', matches itself.
func GlobPattern(pattern string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
			writeGlobLiteral(&sb, r)
		case r == '\\':
			escaped = true
		case r == '*':
			sb.WriteRune('*')
		default:
			writeGlobLiteral(&sb, r)
		}
	}
	if escaped {
		writeGlobLiteral(&sb, '\\')
	}
	return sb.String()
}

func writeGlobLiteral(sb *strings.Builder, r rune) {
	switch r {
	case '*', '?', '[':
		sb.WriteRune('[')
		sb.WriteRune(r)
		sb.WriteRune(']')
	default:
		sb.WriteRune(r)
	}
}
