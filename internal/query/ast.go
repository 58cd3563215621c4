package query

import (
	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/criterion"
)

// Node is a node of the syntax tree produced by Parse.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern enables exhaustive type switches in the
// criterion builder.
//
// Node types:
//   - Field: field:value
//   - And, Or: explicit or implicit boolean composition
//   - Modifier: +clause, -clause, !clause, NOT clause
//   - Group: (query)
//   - Wildcard: field:har*ter
//   - TermRange: field:[a TO b] on non-numeric or untyped fields
//   - PointRange: field:[1 TO 5] on fields declared numeric
//   - MatchAll: *:*, * or an empty query
//   - Fuzzy, Boost, Slop, Regexp: recognized syntax with no criterion
//     equivalent; the builder rejects them
type Node interface {
	queryNode()

	// Kind names the node type, e.g. "Field" or "Fuzzy".
	Kind() string
}

// Field is a single field:value term.
//
// Value has escapes resolved. Quoted is true when the value was written as
// a "phrase"; quoted values are always exact matches.
type Field struct {
	Field  string
	Value  string
	Quoted bool
}

func (Field) queryNode() {}
func (Field) Kind() string { return "Field" }

// And holds clauses that must all hold (explicit AND or implicit
// juxtaposition).
type And struct {
	Children []Node
}

func (And) queryNode() {}
func (And) Kind() string { return "And" }

// Or holds clauses joined by OR.
type Or struct {
	Children []Node
}

func (Or) queryNode() {}
func (Or) Kind() string { return "Or" }

// ModifierKind is the occurrence marker of a clause.
type ModifierKind int

const (
	// Required clauses must match (+).
	Required ModifierKind = iota + 1
	// Prohibited clauses must not match (-, !, NOT).
	Prohibited
)

func (k ModifierKind) String() string {
	switch k {
	case Required:
		return "Required"
	case Prohibited:
		return "Prohibited"
	default:
		return "Unknown"
	}
}

// Modifier marks its child as required or prohibited. Its meaning depends
// on its siblings; see the builder.
type Modifier struct {
	Modifier ModifierKind
	Child    Node
}

func (Modifier) queryNode() {}
func (Modifier) Kind() string { return "Modifier" }

// Group is a parenthesized sub-query.
type Group struct {
	Child Node
}

func (Group) queryNode() {}
func (Group) Kind() string { return "Group" }

// Wildcard is a term containing an unescaped '*'. Pattern is the source
// text as written, escapes included.
type Wildcard struct {
	Field   string
	Pattern string
}

func (Wildcard) queryNode() {}
func (Wildcard) Kind() string { return "Wildcard" }

// TermRange is a range whose bounds are kept as text. A nil bound is
// unbounded.
type TermRange struct {
	Field          string
	Lower          *string
	Upper          *string
	LowerInclusive bool
	UpperInclusive bool
}

func (TermRange) queryNode() {}
func (TermRange) Kind() string { return "TermRange" }

// PointRange is a range on a field declared numeric. Bounds are parsed at
// exactly NumberType; a nil bound is unbounded.
type PointRange struct {
	Field          string
	Lower          *criterion.Number
	Upper          *criterion.Number
	NumberType     attr.SemanticType
	LowerInclusive bool
	UpperInclusive bool
}

func (PointRange) queryNode() {}
func (PointRange) Kind() string { return "PointRange" }

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) queryNode() {}
func (MatchAll) Kind() string { return "MatchAll" }

// Fuzzy is term~ or term~similarity.
type Fuzzy struct {
	Field      string
	Term       string
	Similarity string
}

func (Fuzzy) queryNode() {}
func (Fuzzy) Kind() string { return "Fuzzy" }

// Boost is clause^factor.
type Boost struct {
	Child  Node
	Factor string
}

func (Boost) queryNode() {}
func (Boost) Kind() string { return "Boost" }

// Slop is "phrase"~distance.
type Slop struct {
	Child    Node
	Distance string
}

func (Slop) queryNode() {}
func (Slop) Kind() string { return "Slop" }

// Regexp is field:/pattern/.
type Regexp struct {
	Field   string
	Pattern string
}

func (Regexp) queryNode() {}
func (Regexp) Kind() string { return "Regexp" }

// StrPtr returns a pointer to s. Convenience for building TermRange bounds.
func StrPtr(s string) *string { return &s }

// NumPtr returns a pointer to n. Convenience for building PointRange bounds.
func NumPtr(n criterion.Number) *criterion.Number { return &n }
