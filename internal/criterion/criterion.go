package criterion

import (
	"fmt"
	"strings"
)

// Criterion is a node of a compiled, engine-agnostic search condition.
//
// This is a sealed interface - only types in this package implement it.
// Trees are immutable once built; executors consume them through Accept.
//
// Criterion types:
//   - Equals: field equals a STRING, DATE or JSON literal
//   - BooleanMatch: BOOLEAN field equals true/false
//   - NumberMatch: numeric field equals a Number
//   - Pattern: wildcard match, '*' matches any run of characters
//   - Between: range with optional bounds and per-side inclusivity
//   - And, Or, Not: boolean composition
//   - All: matches every document
type Criterion interface {
	criterionNode()
	String() string
}

// Equals matches documents whose field equals Value.
type Equals struct {
	Field string
	Value Value
}

func (Equals) criterionNode() {}

func (c Equals) String() string {
	return fmt.Sprintf("Equals{%s, %q}", c.Field, c.Value.String())
}

// BooleanMatch matches a BOOLEAN field.
type BooleanMatch struct {
	Field string
	Value bool
}

func (BooleanMatch) criterionNode() {}

func (c BooleanMatch) String() string {
	return fmt.Sprintf("BooleanMatch{%s, %t}", c.Field, c.Value)
}

// NumberMatch matches a numeric field. Value carries the declared width.
type NumberMatch struct {
	Field string
	Value Number
}

func (NumberMatch) criterionNode() {}

func (c NumberMatch) String() string {
	return fmt.Sprintf("NumberMatch{%s, %s %s}", c.Field, c.Value.Type(), c.Value)
}

// Pattern matches a wildcard pattern. The pattern is passed through exactly
// as written in the query.
type Pattern struct {
	Field   string
	Pattern string
}

func (Pattern) criterionNode() {}

func (c Pattern) String() string {
	return fmt.Sprintf("Pattern{%s, %q}", c.Field, c.Pattern)
}

// Between matches values inside a range. A nil bound is unbounded; at least
// one bound is always set.
type Between struct {
	Field          string
	Lower          Value
	Upper          Value
	LowerInclusive bool
	UpperInclusive bool
}

func (Between) criterionNode() {}

func (c Between) String() string {
	lo, hi := "{", "}"
	if c.LowerInclusive {
		lo = "["
	}
	if c.UpperInclusive {
		hi = "]"
	}
	return fmt.Sprintf("Between{%s, %s%s TO %s%s}", c.Field, lo, boundString(c.Lower), boundString(c.Upper), hi)
}

func boundString(v Value) string {
	if v == nil {
		return "*"
	}
	return v.String()
}

// And matches when every child matches.
type And struct {
	Children []Criterion
}

func (And) criterionNode() {}

func (c And) String() string { return "And" + listString(c.Children) }

// Or matches when at least one child matches.
type Or struct {
	Children []Criterion
}

func (Or) criterionNode() {}

func (c Or) String() string { return "Or" + listString(c.Children) }

// Not matches when Child does not.
type Not struct {
	Child Criterion
}

func (Not) criterionNode() {}

func (c Not) String() string { return "Not(" + c.Child.String() + ")" }

// All matches every document.
type All struct{}

func (All) criterionNode() {}

func (All) String() string { return "All" }

// NewAnd copies children into a new And.
func NewAnd(children ...Criterion) And {
	return And{Children: append([]Criterion(nil), children...)}
}

// NewOr copies children into a new Or.
func NewOr(children ...Criterion) Or {
	return Or{Children: append([]Criterion(nil), children...)}
}

func listString(children []Criterion) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
