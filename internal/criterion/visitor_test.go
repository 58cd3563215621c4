package criterion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kindCounter counts leaves and composites by visiting the whole tree.
type kindCounter struct {
	seen []string
}

func (k *kindCounter) VisitEquals(Equals) (int, error) { k.seen = append(k.seen, "equals"); return 1, nil }
func (k *kindCounter) VisitBooleanMatch(BooleanMatch) (int, error) {
	k.seen = append(k.seen, "boolean")
	return 1, nil
}
func (k *kindCounter) VisitNumberMatch(NumberMatch) (int, error) {
	k.seen = append(k.seen, "number")
	return 1, nil
}
func (k *kindCounter) VisitPattern(Pattern) (int, error) { k.seen = append(k.seen, "pattern"); return 1, nil }
func (k *kindCounter) VisitBetween(Between) (int, error) { k.seen = append(k.seen, "between"); return 1, nil }
func (k *kindCounter) VisitAnd(c And) (int, error) {
	k.seen = append(k.seen, "and")
	return k.sum(c.Children)
}
func (k *kindCounter) VisitOr(c Or) (int, error) {
	k.seen = append(k.seen, "or")
	return k.sum(c.Children)
}
func (k *kindCounter) VisitNot(c Not) (int, error) {
	k.seen = append(k.seen, "not")
	return Accept[int](c.Child, k)
}
func (k *kindCounter) VisitAll(All) (int, error) { k.seen = append(k.seen, "all"); return 0, nil }

func (k *kindCounter) sum(children []Criterion) (int, error) {
	total := 0
	for _, c := range children {
		n, err := Accept[int](c, k)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func sampleTree() Criterion {
	return NewAnd(
		Equals{Field: "feature.properties.status", Value: StringValue("active")},
		Not{Child: Equals{Field: "feature.properties.owner", Value: StringValue("bob")}},
		NewOr(
			BooleanMatch{Field: "feature.properties.valid", Value: true},
			NumberMatch{Field: "feature.properties.size", Value: Int32(3)},
			Pattern{Field: "feature.properties.name", Pattern: "har*"},
		),
		Between{Field: "feature.properties.size", Lower: Int32(10), LowerInclusive: true, UpperInclusive: true},
		All{},
	)
}

func TestAccept_VisitsEveryNode(t *testing.T) {
	k := &kindCounter{}
	leaves, err := Accept[int](sampleTree(), k)
	require.NoError(t, err)

	assert.Equal(t, 6, leaves)
	assert.Equal(t, []string{
		"and", "equals", "not", "equals", "or", "boolean", "number", "pattern", "between", "all",
	}, k.seen)
}

func TestAccept_PointerNodes(t *testing.T) {
	k := &kindCounter{}
	n, err := Accept[int](&Equals{Field: "f", Value: StringValue("v")}, k)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAccept_Nil(t *testing.T) {
	_, err := Accept[int](nil, &kindCounter{})
	assert.Error(t, err)
}

func TestWalkAndFields(t *testing.T) {
	var kinds []string
	Walk(sampleTree(), func(c Criterion) bool {
		kinds = append(kinds, fmt.Sprintf("%T", c))
		_, isNot := c.(Not)
		return !isNot
	})
	assert.Len(t, kinds, 9, "the Not child is skipped")
	assert.Equal(t, "criterion.And", kinds[0])
	assert.Equal(t, "criterion.Not,criterion.Or", strings.Join(kinds[2:4], ","))

	assert.Equal(t, []string{
		"feature.properties.name",
		"feature.properties.owner",
		"feature.properties.size",
		"feature.properties.status",
		"feature.properties.valid",
	}, Fields(sampleTree()))
}

func TestString(t *testing.T) {
	c := NewAnd(
		Equals{Field: "status", Value: StringValue("active")},
		Not{Child: Equals{Field: "owner", Value: StringValue("bob")}},
		Between{Field: "size", Lower: Int32(10), LowerInclusive: true, UpperInclusive: true},
	)
	assert.Equal(t,
		`And[Equals{status, "active"}, Not(Equals{owner, "bob"}), Between{size, [10 TO *]}]`,
		c.String())
	assert.Equal(t, "All", All{}.String())
	assert.Equal(t, "NumberMatch{size, INTEGER 3}", NumberMatch{Field: "size", Value: Int32(3)}.String())
}

func TestNewAndCopiesChildren(t *testing.T) {
	children := []Criterion{All{}}
	and := NewAnd(children...)
	children[0] = Equals{Field: "f", Value: StringValue("v")}
	assert.Equal(t, All{}, and.Children[0])
}
