package builder

import (
	"errors"
	"fmt"

	"github.com/roach88/searchql/internal/attr"
)

// BuildError reports a syntax tree that cannot become a criterion.
//
// Build errors include:
//   - Unknown attribute: the field name does not resolve, including bare
//     names shared by several namespaces
//   - Type mismatch: a value does not coerce to the declared type
//   - Empty group: "()" or an And/Or without children
//   - Empty range: both range bounds unbounded
//   - Unsupported: fuzzy, boost, slop and regexp syntax
type BuildError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Field is the field name as written in the query.
	Field string

	// DeclaredType is the resolved type (TYPE_MISMATCH only).
	DeclaredType attr.SemanticType

	// RawValue is the text that failed to coerce (TYPE_MISMATCH only).
	RawValue string

	// Kind is the syntax node kind (EMPTY_GROUP and UNSUPPORTED).
	Kind string

	// Err is the underlying coercion error, if any.
	Err error
}

// ErrorCode categorizes build errors.
type ErrorCode string

const (
	// ErrCodeUnknownAttribute indicates a field name that does not resolve.
	ErrCodeUnknownAttribute ErrorCode = "UNKNOWN_ATTRIBUTE"

	// ErrCodeTypeMismatch indicates a value that does not fit the declared type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeEmptyGroup indicates a boolean group without children.
	ErrCodeEmptyGroup ErrorCode = "EMPTY_GROUP"

	// ErrCodeEmptyRange indicates a range with neither bound set.
	ErrCodeEmptyRange ErrorCode = "EMPTY_RANGE"

	// ErrCodeUnsupported indicates syntax with no criterion equivalent.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	switch e.Code {
	case ErrCodeUnknownAttribute:
		return fmt.Sprintf("%s: unknown attribute %q", e.Code, e.Field)
	case ErrCodeTypeMismatch:
		msg := fmt.Sprintf("%s: %q is not a valid %s value for %s", e.Code, e.RawValue, e.DeclaredType, e.Field)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	case ErrCodeEmptyGroup:
		return fmt.Sprintf("%s: empty %s group", e.Code, e.Kind)
	case ErrCodeEmptyRange:
		return fmt.Sprintf("%s: range on %s has no bounds", e.Code, e.Field)
	case ErrCodeUnsupported:
		if e.Field != "" {
			return fmt.Sprintf("%s: %s queries are not supported (field %s)", e.Code, e.Kind, e.Field)
		}
		return fmt.Sprintf("%s: %s queries are not supported", e.Code, e.Kind)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Field)
	}
}

// Unwrap returns the underlying coercion error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsBuildError returns true if err is or wraps a BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

// IsUnknownAttribute returns true if err is an UNKNOWN_ATTRIBUTE build error.
// Uses errors.As to handle wrapped errors.
func IsUnknownAttribute(err error) bool { return hasCode(err, ErrCodeUnknownAttribute) }

// IsTypeMismatch returns true if err is a TYPE_MISMATCH build error.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrCodeTypeMismatch) }

// IsEmptyGroup returns true if err is an EMPTY_GROUP build error.
func IsEmptyGroup(err error) bool { return hasCode(err, ErrCodeEmptyGroup) }

// IsEmptyRange returns true if err is an EMPTY_RANGE build error.
func IsEmptyRange(err error) bool { return hasCode(err, ErrCodeEmptyRange) }

// IsUnsupported returns true if err is an UNSUPPORTED build error.
func IsUnsupported(err error) bool { return hasCode(err, ErrCodeUnsupported) }

func unknownAttribute(field string) *BuildError {
	return &BuildError{Code: ErrCodeUnknownAttribute, Field: field}
}

func typeMismatch(field string, declared attr.SemanticType, raw string, err error) *BuildError {
	return &BuildError{Code: ErrCodeTypeMismatch, Field: field, DeclaredType: declared, RawValue: raw, Err: err}
}

func unsupported(kind, field string) *BuildError {
	return &BuildError{Code: ErrCodeUnsupported, Kind: kind, Field: field}
}
