package query

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError reports malformed query syntax.
//
// Pos is a byte offset into Query. Parse never panics; every syntax
// problem surfaces as a ParseError.
type ParseError struct {
	Pos     int
	Message string
	Query   string
}

func newParseError(src string, pos int, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Message: fmt.Sprintf(format, args...), Query: src}
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Message)
}

// Snippet renders the query with a caret under the offending position.
func (e *ParseError) Snippet() string {
	pos := e.Pos
	if pos > len(e.Query) {
		pos = len(e.Query)
	}
	return e.Query + "\n" + strings.Repeat(" ", pos) + "^"
}

// IsParseError returns true if err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
