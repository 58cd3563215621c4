// Package builder turns parsed query syntax into criterion trees.
//
// Build is a single exhaustive type switch over query.Node. Field names are
// resolved against one immutable attribute snapshot, values are coerced to
// the declared type, and the resulting criteria name their field by its
// fully-qualified document path.
//
// Boolean groups follow Lucene occurrence semantics. Children of a group are
// REQUIRED (+clause, or any plain child of an And), OPTIONAL (a plain child
// of an Or) or PROHIBITED (-clause, !clause, NOT clause). Required children
// make optional ones irrelevant; prohibited children subtract matches:
//
//	status:active AND NOT owner:bob  ->  And[Equals{status}, Not(Equals{owner})]
//	a OR b -c                        ->  And[Or[a, b], Not(c)]
//	-c                               ->  Not(c)
package builder

import (
	"strings"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/criterion"
	"github.com/roach88/searchql/internal/query"
)

// Resolver maps a query field name to its definition. *attr.Snapshot
// satisfies it.
type Resolver interface {
	Resolve(key string) (attr.Definition, bool)
}

// Build converts a syntax tree into a criterion tree.
//
// Build never panics. Every failure is a *BuildError; the first failure in
// a left-to-right walk of the tree is reported.
func Build(node query.Node, props Resolver) (criterion.Criterion, error) {
	b := &builder{props: props}
	return b.build(node)
}

type builder struct {
	props Resolver
}

func (b *builder) build(node query.Node) (criterion.Criterion, error) {
	switch n := node.(type) {
	case query.Field:
		return b.field(n)
	case query.And:
		return b.group(n.Kind(), n.Children, true)
	case query.Or:
		return b.group(n.Kind(), n.Children, false)
	case query.Modifier:
		child, err := b.build(n.Child)
		if err != nil {
			return nil, err
		}
		if n.Modifier == query.Prohibited {
			return criterion.Not{Child: child}, nil
		}
		return child, nil
	case query.Group:
		return b.build(n.Child)
	case query.MatchAll:
		return criterion.All{}, nil
	case query.Wildcard:
		return b.wildcard(n)
	case query.TermRange:
		return b.termRange(n)
	case query.PointRange:
		return b.pointRange(n)
	case query.Fuzzy:
		return nil, unsupported(n.Kind(), n.Field)
	case query.Regexp:
		return nil, unsupported(n.Kind(), n.Field)
	case nil:
		return nil, unsupported("<nil>", "")
	default:
		// Boost, Slop and any node kind added later.
		return nil, unsupported(n.Kind(), "")
	}
}

func (b *builder) resolve(field string) (attr.Definition, error) {
	def, ok := b.props.Resolve(field)
	if !ok {
		return attr.Definition{}, unknownAttribute(field)
	}
	return def, nil
}

func (b *builder) field(n query.Field) (criterion.Criterion, error) {
	def, err := b.resolve(n.Field)
	if err != nil {
		return nil, err
	}
	path := def.FullPath()

	switch {
	case def.Type == attr.TypeBoolean:
		switch {
		case strings.EqualFold(n.Value, "true"):
			return criterion.BooleanMatch{Field: path, Value: true}, nil
		case strings.EqualFold(n.Value, "false"):
			return criterion.BooleanMatch{Field: path, Value: false}, nil
		}
		return nil, typeMismatch(n.Field, def.Type, n.Value, nil)

	case def.Type.IsNumeric():
		num, err := criterion.ParseNumber(n.Value, def.Type)
		if err != nil {
			return nil, typeMismatch(n.Field, def.Type, n.Value, err)
		}
		return criterion.NumberMatch{Field: path, Value: num}, nil
	}

	v, err := coerce(def.Type, n.Value)
	if err != nil {
		return nil, typeMismatch(n.Field, def.Type, n.Value, err)
	}
	return criterion.Equals{Field: path, Value: v}, nil
}

// coerce converts text to a non-boolean value of the declared type.
func coerce(typ attr.SemanticType, text string) (criterion.Value, error) {
	switch {
	case typ == attr.TypeDate:
		d, err := criterion.ParseDate(text)
		if err != nil {
			return nil, err
		}
		return d, nil
	case typ.IsNumeric():
		n, err := criterion.ParseNumber(text, typ)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return criterion.StringValue(text), nil
	}
}

// group combines the children of an And (conj) or Or.
func (b *builder) group(kind string, children []query.Node, conj bool) (criterion.Criterion, error) {
	if len(children) == 0 {
		return nil, &BuildError{Code: ErrCodeEmptyGroup, Kind: kind}
	}

	var required, optional, prohibited []criterion.Criterion
	for _, child := range children {
		occur := query.ModifierKind(0)
		if m, ok := child.(query.Modifier); ok {
			occur, child = m.Modifier, m.Child
		}

		c, err := b.build(child)
		if err != nil {
			return nil, err
		}

		switch {
		case occur == query.Prohibited:
			prohibited = append(prohibited, c)
		case occur == query.Required, conj:
			required = append(required, c)
		default:
			optional = append(optional, c)
		}
	}

	var parts []criterion.Criterion
	switch {
	case len(required) > 0:
		parts = append(parts, required...)
	case len(optional) == 1:
		parts = append(parts, optional[0])
	case len(optional) > 1:
		parts = append(parts, criterion.NewOr(optional...))
	case len(prohibited) == 0:
		parts = append(parts, criterion.All{})
	}
	for _, c := range prohibited {
		parts = append(parts, criterion.Not{Child: c})
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return criterion.And{Children: parts}, nil
}

func (b *builder) wildcard(n query.Wildcard) (criterion.Criterion, error) {
	def, err := b.resolve(n.Field)
	if err != nil {
		return nil, err
	}
	if def.Type != attr.TypeString && def.Type != attr.TypeJSON {
		return nil, typeMismatch(n.Field, def.Type, n.Pattern, nil)
	}
	return criterion.Pattern{Field: def.FullPath(), Pattern: n.Pattern}, nil
}

func (b *builder) termRange(n query.TermRange) (criterion.Criterion, error) {
	def, err := b.resolve(n.Field)
	if err != nil {
		return nil, err
	}
	if n.Lower == nil && n.Upper == nil {
		return nil, &BuildError{Code: ErrCodeEmptyRange, Field: n.Field}
	}
	if def.Type == attr.TypeBoolean || def.Type == attr.TypeJSON {
		return nil, typeMismatch(n.Field, def.Type, rangeText(n.Lower, n.Upper), nil)
	}

	between := criterion.Between{
		Field:          def.FullPath(),
		LowerInclusive: n.LowerInclusive,
		UpperInclusive: n.UpperInclusive,
	}
	if n.Lower != nil {
		v, err := coerce(def.Type, *n.Lower)
		if err != nil {
			return nil, typeMismatch(n.Field, def.Type, *n.Lower, err)
		}
		between.Lower = v
	}
	if n.Upper != nil {
		v, err := coerce(def.Type, *n.Upper)
		if err != nil {
			return nil, typeMismatch(n.Field, def.Type, *n.Upper, err)
		}
		between.Upper = v
	}
	return between, nil
}

func (b *builder) pointRange(n query.PointRange) (criterion.Criterion, error) {
	def, err := b.resolve(n.Field)
	if err != nil {
		return nil, err
	}
	if n.Lower == nil && n.Upper == nil {
		return nil, &BuildError{Code: ErrCodeEmptyRange, Field: n.Field}
	}

	between := criterion.Between{
		Field:          def.FullPath(),
		LowerInclusive: n.LowerInclusive,
		UpperInclusive: n.UpperInclusive,
	}
	for _, bound := range []struct {
		num *criterion.Number
		dst *criterion.Value
	}{
		{n.Lower, &between.Lower},
		{n.Upper, &between.Upper},
	} {
		if bound.num == nil {
			continue
		}
		if n.NumberType != def.Type || bound.num.Type() != def.Type {
			return nil, typeMismatch(n.Field, def.Type, bound.num.String(), nil)
		}
		*bound.dst = *bound.num
	}
	return between, nil
}

func rangeText(lower, upper *string) string {
	lo, hi := "*", "*"
	if lower != nil {
		lo = *lower
	}
	if upper != nil {
		hi = *upper
	}
	return lo + " TO " + hi
}
