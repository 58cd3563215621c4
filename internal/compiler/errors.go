package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/searchql/internal/builder"
	"github.com/roach88/searchql/internal/query"
)

// CodeParseError is the Code of any syntax failure.
const CodeParseError = "PARSE_ERROR"

// Stage names the compilation phase that failed.
type Stage string

const (
	// StageParse indicates malformed query syntax (*query.ParseError).
	StageParse Stage = "parse"

	// StageBuild indicates a syntax tree that cannot be typed (*builder.BuildError).
	StageBuild Stage = "build"

	// StageSnapshot labels snapshot load failures in metrics. It never
	// appears in a CompileError.
	StageSnapshot Stage = "snapshot"
)

// CompileError reports a query that cannot be compiled for a tenant.
//
// Err is a *query.ParseError or a *builder.BuildError; query.IsParseError,
// builder.IsUnknownAttribute and friends see through the wrapper.
type CompileError struct {
	Stage  Stage
	Tenant string
	Query  string
	Err    error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Stage, e.Err)
}

// Unwrap returns the parse or build error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError returns true if err is or wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// Code classifies a compilation failure: CodeParseError for syntax
// errors, the BuildError code for build errors, and "" for anything else.
func Code(err error) string {
	var be *builder.BuildError
	switch {
	case errors.As(err, &be):
		return string(be.Code)
	case query.IsParseError(err):
		return CodeParseError
	default:
		return ""
	}
}
