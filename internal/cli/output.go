package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/searchql/internal/builder"
	"github.com/roach88/searchql/internal/catalog"
	"github.com/roach88/searchql/internal/compiler"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query rejected or scenarios failed
	ExitCommandError = 2 // Command error (invalid paths, unreadable catalog, etc.)
)

// Error codes reported by the CLI. Catalog loading uses the catalog
// package codes (E001-E006, E1xx) unchanged.
const (
	ErrCodeGeneric      = catalog.ErrCodeGeneric
	ErrCodeConfig       = "E010" // Configuration unreadable or invalid
	ErrCodeNoCatalog    = "E011" // No catalog path configured
	ErrCodeStore        = "E012" // SQLite store unavailable or failed
	ErrCodeNotify       = "E013" // Change-event transport failed
	ErrCodeSearchSource = "E014" // --search needs a sqlite catalog

	ErrCodeCompile          = "E200" // Attribute snapshot unavailable
	ErrCodeParse            = "E201" // Malformed query syntax
	ErrCodeUnknownAttribute = "E202" // Field does not resolve
	ErrCodeTypeMismatch     = "E203" // Value does not fit the declared type
	ErrCodeEmptyGroup       = "E204" // Boolean group without children
	ErrCodeEmptyRange       = "E205" // Range without bounds
	ErrCodeUnsupported      = "E206" // Fuzzy, regexp, boost or slop syntax
	ErrCodeNotResolved      = "E207" // resolve: key unknown or ambiguous
)

var compileCodes = map[string]string{
	compiler.CodeParseError:                 ErrCodeParse,
	string(builder.ErrCodeUnknownAttribute): ErrCodeUnknownAttribute,
	string(builder.ErrCodeTypeMismatch):     ErrCodeTypeMismatch,
	string(builder.ErrCodeEmptyGroup):       ErrCodeEmptyGroup,
	string(builder.ErrCodeEmptyRange):       ErrCodeEmptyRange,
	string(builder.ErrCodeUnsupported):      ErrCodeUnsupported,
}

// MapCompileErrorCode maps a compilation failure to its CLI error code.
func MapCompileErrorCode(err error) string {
	if code, ok := compileCodes[compiler.Code(err)]; ok {
		return code
	}
	return ErrCodeCompile
}

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports an error and returns it as an ExitError carrying exitCode.
func (f *OutputFormatter) Fail(exitCode int, code, message string, details any) error {
	_ = f.Error(code, message, details)
	return WrapExitError(exitCode, fmt.Sprintf("%s: %s", code, message), nil)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
