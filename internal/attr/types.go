package attr

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SemanticType is the declared value type of an attribute.
type SemanticType string

const (
	TypeBoolean SemanticType = "BOOLEAN"
	TypeString  SemanticType = "STRING"
	TypeInteger SemanticType = "INTEGER"
	TypeLong    SemanticType = "LONG"
	TypeFloat   SemanticType = "FLOAT"
	TypeDouble  SemanticType = "DOUBLE"
	TypeDate    SemanticType = "DATE"
	TypeJSON    SemanticType = "JSON"
)

// SemanticTypes lists every supported type in declaration order.
var SemanticTypes = []SemanticType{
	TypeBoolean, TypeString, TypeInteger, TypeLong,
	TypeFloat, TypeDouble, TypeDate, TypeJSON,
}

// typeAliases maps legacy catalog spellings onto the canonical types.
var typeAliases = map[string]SemanticType{
	"DATE_ISO8601": TypeDate,
	"URL":          TypeString,
}

// ParseSemanticType parses a type name case-insensitively.
func ParseSemanticType(s string) (SemanticType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, t := range SemanticTypes {
		if string(t) == upper {
			return t, nil
		}
	}
	if t, ok := typeAliases[upper]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown attribute type %q", s)
}

// IsNumeric reports whether values of this type are compared as numbers.
func (t SemanticType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeLong, TypeFloat, TypeDouble:
		return true
	}
	return false
}

// IsIntegral reports whether the type is an integer width.
func (t SemanticType) IsIntegral() bool {
	return t == TypeInteger || t == TypeLong
}

// Document path prefixes for static and dynamic attributes.
const (
	FeaturePrefix    = "feature"
	PropertiesPrefix = "properties"
)

// Definition describes one attribute of a tenant's catalog.
//
// Definitions are immutable once they are part of a Snapshot. Two
// definitions are the same attribute iff their qualified keys match.
type Definition struct {
	Name      string       `json:"name" yaml:"name"`
	Type      SemanticType `json:"type" yaml:"type"`
	Namespace string       `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Dynamic   bool         `json:"dynamic" yaml:"dynamic"`
}

// BareKey returns the attribute name, NFC-normalized.
func (d Definition) BareKey() string {
	return norm.NFC.String(d.Name)
}

// QualifiedKey returns "namespace.name", or the bare key when the
// attribute has no namespace.
func (d Definition) QualifiedKey() string {
	if d.Namespace == "" {
		return d.BareKey()
	}
	return norm.NFC.String(d.Namespace) + "." + d.BareKey()
}

// FullPath returns the document path of the attribute as stored by the
// search engine.
func (d Definition) FullPath() string {
	if d.Dynamic {
		return FeaturePrefix + "." + PropertiesPrefix + "." + d.QualifiedKey()
	}
	return FeaturePrefix + "." + d.QualifiedKey()
}

// Validate checks that the definition can be keyed unambiguously.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("attribute name is required")
	}
	if strings.Contains(d.Name, ".") {
		return fmt.Errorf("attribute name %q must not contain '.'", d.Name)
	}
	if strings.Contains(d.Namespace, ".") {
		return fmt.Errorf("namespace %q of attribute %q must not contain '.'", d.Namespace, d.Name)
	}
	if _, err := ParseSemanticType(string(d.Type)); err != nil {
		return fmt.Errorf("attribute %q: %w", d.QualifiedKey(), err)
	}
	return nil
}

func (d Definition) String() string {
	return fmt.Sprintf("%s(%s)", d.QualifiedKey(), d.Type)
}
