package criterion

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/searchql/internal/attr"
)

// Value is a typed literal carried by a criterion.
//
// This is a sealed interface: StringValue, DateValue and Number are the
// only implementations.
type Value interface {
	valueNode()
	Type() attr.SemanticType
	String() string
}

// StringValue is a STRING (or JSON) literal.
type StringValue string

func (StringValue) valueNode() {}

// Type implements Value.
func (StringValue) Type() attr.SemanticType { return attr.TypeString }

func (v StringValue) String() string { return string(v) }

// DateValue is an instant, always held in UTC.
type DateValue struct {
	Time time.Time
}

func (DateValue) valueNode() {}

// NewDate normalizes t to UTC.
func NewDate(t time.Time) DateValue {
	return DateValue{Time: t.UTC()}
}

// Type implements Value.
func (DateValue) Type() attr.SemanticType { return attr.TypeDate }

// String renders the instant with a fixed-width nanosecond fraction so that
// lexical order equals chronological order.
func (v DateValue) String() string {
	return v.Time.UTC().Format(DateLayout)
}

// DateLayout is the canonical rendering of a DateValue.
const DateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dateLayouts are tried in order when parsing user input. Layouts without a
// zone offset are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or date-time.
func ParseDate(s string) (DateValue, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t), nil
		}
	}
	return DateValue{}, fmt.Errorf("%q is not an ISO-8601 date", s)
}

// Number is a numeric literal at an exact declared width.
//
// INTEGER values fit in int32, LONG in int64, FLOAT in float32 and DOUBLE in
// float64. A Number never holds NaN or an infinity.
type Number struct {
	typ attr.SemanticType
	i   int64
	f   float64
}

func (Number) valueNode() {}

// Int32 returns an INTEGER number.
func Int32(v int32) Number { return Number{typ: attr.TypeInteger, i: int64(v)} }

// Int64 returns a LONG number.
func Int64(v int64) Number { return Number{typ: attr.TypeLong, i: v} }

// Float32 returns a FLOAT number.
func Float32(v float32) Number { return Number{typ: attr.TypeFloat, f: float64(v)} }

// Float64 returns a DOUBLE number.
func Float64(v float64) Number { return Number{typ: attr.TypeDouble, f: v} }

// ParseNumber parses s at exactly the width of typ. Out-of-range values,
// fractional values for integral types, NaN and infinities are rejected.
func ParseNumber(s string, typ attr.SemanticType) (Number, error) {
	s = strings.TrimSpace(s)
	switch typ {
	case attr.TypeInteger:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Number{}, fmt.Errorf("%q is not a valid %s: %w", s, typ, err)
		}
		return Int32(int32(v)), nil
	case attr.TypeLong:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Number{}, fmt.Errorf("%q is not a valid %s: %w", s, typ, err)
		}
		return Int64(v), nil
	case attr.TypeFloat, attr.TypeDouble:
		bits := 64
		if typ == attr.TypeFloat {
			bits = 32
		}
		v, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return Number{}, fmt.Errorf("%q is not a valid %s: %w", s, typ, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Number{}, fmt.Errorf("%q is not a finite %s", s, typ)
		}
		if typ == attr.TypeFloat {
			return Float32(float32(v)), nil
		}
		return Float64(v), nil
	default:
		return Number{}, fmt.Errorf("%s is not a numeric type", typ)
	}
}

// Type implements Value.
func (n Number) Type() attr.SemanticType { return n.typ }

// IsIntegral reports whether the number is an INTEGER or LONG.
func (n Number) IsIntegral() bool { return n.typ.IsIntegral() }

// Int64 returns the integral value. Zero for FLOAT and DOUBLE.
func (n Number) Int64() int64 { return n.i }

// Float64 returns the value as a float64 for every width.
func (n Number) Float64() float64 {
	if n.IsIntegral() {
		return float64(n.i)
	}
	return n.f
}

// String renders the shortest text that parses back to the same value at
// the same width.
func (n Number) String() string {
	switch n.typ {
	case attr.TypeInteger, attr.TypeLong:
		return strconv.FormatInt(n.i, 10)
	case attr.TypeFloat:
		return strconv.FormatFloat(n.f, 'g', -1, 32)
	default:
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
}
