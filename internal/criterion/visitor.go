package criterion

import (
	"fmt"
	"sort"
)

// Visitor is the contract between a criterion tree and a search executor.
// Composite nodes are passed as-is; implementations recurse with Accept.
type Visitor[T any] interface {
	VisitEquals(Equals) (T, error)
	VisitBooleanMatch(BooleanMatch) (T, error)
	VisitNumberMatch(NumberMatch) (T, error)
	VisitPattern(Pattern) (T, error)
	VisitBetween(Between) (T, error)
	VisitAnd(And) (T, error)
	VisitOr(Or) (T, error)
	VisitNot(Not) (T, error)
	VisitAll(All) (T, error)
}

// Accept dispatches c to the matching Visitor method.
func Accept[T any](c Criterion, v Visitor[T]) (T, error) {
	var zero T
	switch n := c.(type) {
	case Equals:
		return v.VisitEquals(n)
	case *Equals:
		return v.VisitEquals(*n)
	case BooleanMatch:
		return v.VisitBooleanMatch(n)
	case *BooleanMatch:
		return v.VisitBooleanMatch(*n)
	case NumberMatch:
		return v.VisitNumberMatch(n)
	case *NumberMatch:
		return v.VisitNumberMatch(*n)
	case Pattern:
		return v.VisitPattern(n)
	case *Pattern:
		return v.VisitPattern(*n)
	case Between:
		return v.VisitBetween(n)
	case *Between:
		return v.VisitBetween(*n)
	case And:
		return v.VisitAnd(n)
	case *And:
		return v.VisitAnd(*n)
	case Or:
		return v.VisitOr(n)
	case *Or:
		return v.VisitOr(*n)
	case Not:
		return v.VisitNot(n)
	case *Not:
		return v.VisitNot(*n)
	case All:
		return v.VisitAll(n)
	case *All:
		return v.VisitAll(*n)
	case nil:
		return zero, fmt.Errorf("cannot visit nil criterion")
	default:
		return zero, fmt.Errorf("unsupported criterion type: %T", c)
	}
}

// Walk calls fn for c and its descendants in pre-order. Returning false
// from fn skips the node's children.
func Walk(c Criterion, fn func(Criterion) bool) {
	if c == nil || !fn(c) {
		return
	}
	switch n := c.(type) {
	case And:
		for _, child := range n.Children {
			Walk(child, fn)
		}
	case Or:
		for _, child := range n.Children {
			Walk(child, fn)
		}
	case Not:
		Walk(n.Child, fn)
	}
}

// Fields returns the distinct field paths referenced by c, sorted.
func Fields(c Criterion) []string {
	seen := map[string]bool{}
	Walk(c, func(n Criterion) bool {
		switch leaf := n.(type) {
		case Equals:
			seen[leaf.Field] = true
		case BooleanMatch:
			seen[leaf.Field] = true
		case NumberMatch:
			seen[leaf.Field] = true
		case Pattern:
			seen[leaf.Field] = true
		case Between:
			seen[leaf.Field] = true
		}
		return true
	})

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
