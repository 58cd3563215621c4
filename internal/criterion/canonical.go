package criterion

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical renders a criterion tree as canonical JSON.
//
// The encoding is deterministic: object keys are sorted, no insignificant
// whitespace is emitted, strings are NFC-normalized and only the characters
// JSON requires are escaped. Numbers are emitted as decimal strings tagged
// with their declared type so FLOAT and DOUBLE survive without rounding.
// Golden files and the CLI JSON output use this encoding.
func MarshalCanonical(c Criterion) ([]byte, error) {
	doc, err := Document(c)
	if err != nil {
		return nil, err
	}
	return EncodeCanonical(doc)
}

// EncodeCanonical renders a plain document (maps with string keys, []any,
// strings and booleans) with the same encoding as MarshalCanonical. It is
// used to wrap criterion documents in larger canonical records.
func EncodeCanonical(doc any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Document converts a criterion tree into plain maps and slices.
func Document(c Criterion) (map[string]any, error) {
	return Accept[map[string]any](c, documentVisitor{})
}

type documentVisitor struct{}

func (documentVisitor) VisitEquals(c Equals) (map[string]any, error) {
	if c.Value == nil {
		return nil, fmt.Errorf("equals on %s has no value", c.Field)
	}
	return map[string]any{"type": "equals", "field": c.Field, "value": valueDocument(c.Value)}, nil
}

func (documentVisitor) VisitBooleanMatch(c BooleanMatch) (map[string]any, error) {
	return map[string]any{"type": "boolean", "field": c.Field, "value": c.Value}, nil
}

func (documentVisitor) VisitNumberMatch(c NumberMatch) (map[string]any, error) {
	return map[string]any{"type": "number", "field": c.Field, "value": valueDocument(c.Value)}, nil
}

func (documentVisitor) VisitPattern(c Pattern) (map[string]any, error) {
	return map[string]any{"type": "pattern", "field": c.Field, "pattern": c.Pattern}, nil
}

func (documentVisitor) VisitBetween(c Between) (map[string]any, error) {
	doc := map[string]any{
		"type":            "between",
		"field":           c.Field,
		"lower_inclusive": c.LowerInclusive,
		"upper_inclusive": c.UpperInclusive,
	}
	if c.Lower != nil {
		doc["lower"] = valueDocument(c.Lower)
	}
	if c.Upper != nil {
		doc["upper"] = valueDocument(c.Upper)
	}
	return doc, nil
}

func (v documentVisitor) VisitAnd(c And) (map[string]any, error) {
	children, err := v.children(c.Children)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "and", "children": children}, nil
}

func (v documentVisitor) VisitOr(c Or) (map[string]any, error) {
	children, err := v.children(c.Children)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "or", "children": children}, nil
}

func (v documentVisitor) VisitNot(c Not) (map[string]any, error) {
	child, err := Accept[map[string]any](c.Child, v)
	if err != nil {
		return nil, fmt.Errorf("not: %w", err)
	}
	return map[string]any{"type": "not", "child": child}, nil
}

func (documentVisitor) VisitAll(All) (map[string]any, error) {
	return map[string]any{"type": "all"}, nil
}

func (v documentVisitor) children(children []Criterion) ([]any, error) {
	out := make([]any, len(children))
	for i, child := range children {
		doc, err := Accept[map[string]any](child, v)
		if err != nil {
			return nil, fmt.Errorf("children[%d]: %w", i, err)
		}
		out[i] = doc
	}
	return out, nil
}

func valueDocument(v Value) map[string]any {
	return map[string]any{"kind": string(v.Type()), "text": v.String()}
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case string:
		writeCanonicalString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString escapes only quote, backslash and control characters.
// <, >, & and U+2028/U+2029 are written literally.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
