// Package errors provides structured error types for pcbmesh.
//
// Every failure the conversion pipeline can report carries a machine-readable
// [Code]. Codes belong to one of four stage categories (parse, assembly,
// composition, export) plus a handful of general input and internal codes.
// An [Error] additionally records where it happened: the layer it was raised
// for, the source line and byte offset for parser errors, and the output
// format for exporter errors.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeMalformedCommand, "unknown opcode %q", word).At(12, 340)
//	if errors.Is(err, errors.ErrCodeMalformedCommand) {
//	    // handle parse failure
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeIOWrite, origErr, "write %s", path).WithFormat("stl")
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeFileNotFound  Code = "FILE_NOT_FOUND"

	// Parse errors
	ErrCodeMalformedCommand    Code = "MALFORMED_COMMAND"
	ErrCodeUnsupportedAperture Code = "UNSUPPORTED_APERTURE"
	ErrCodeTruncatedFile       Code = "TRUNCATED_FILE"

	// Assembly errors
	ErrCodeUnclosedRegion    Code = "UNCLOSED_REGION"
	ErrCodeDanglingAperture  Code = "DANGLING_APERTURE"
	ErrCodeDegeneratePolygon Code = "DEGENERATE_POLYGON"
	ErrCodeSelfIntersection  Code = "SELF_INTERSECTION"
	ErrCodeUnionLimit        Code = "UNION_LIMIT"

	// Composition errors
	ErrCodeMissingEdgeCuts Code = "MISSING_EDGE_CUTS"

	// Export errors
	ErrCodeEmptyMesh Code = "EMPTY_MESH"
	ErrCodeIOWrite   Code = "IO_WRITE"
	ErrCodeEncoding  Code = "ENCODING"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Category groups codes by the pipeline stage that raises them.
type Category string

const (
	CategoryInput       Category = "input"
	CategoryParse       Category = "parse"
	CategoryAssembly    Category = "assembly"
	CategoryComposition Category = "composition"
	CategoryExport      Category = "export"
	CategoryInternal    Category = "internal"
)

// Category returns the stage category a code belongs to.
func (c Code) Category() Category {
	switch c {
	case ErrCodeMalformedCommand, ErrCodeUnsupportedAperture, ErrCodeTruncatedFile:
		return CategoryParse
	case ErrCodeUnclosedRegion, ErrCodeDanglingAperture, ErrCodeDegeneratePolygon,
		ErrCodeSelfIntersection, ErrCodeUnionLimit:
		return CategoryAssembly
	case ErrCodeMissingEdgeCuts:
		return CategoryComposition
	case ErrCodeEmptyMesh, ErrCodeIOWrite, ErrCodeEncoding:
		return CategoryExport
	case ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidPath, ErrCodeFileNotFound:
		return CategoryInput
	default:
		return CategoryInternal
	}
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)

	Layer  string // Layer the error was raised for (optional)
	Format string // Output format for export errors (optional)
	Line   int    // 1-based source line for parse errors, 0 if unknown
	Offset int64  // Byte offset into the source for parse errors
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	if e.Layer != "" {
		b.WriteString(e.Layer)
		b.WriteString(": ")
	}
	if e.Format != "" {
		b.WriteString(e.Format)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d, offset %d)", e.Line, e.Offset)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Category returns the stage category of the error's code.
func (e *Error) Category() Category {
	return e.Code.Category()
}

// At records the source position of a parse error and returns e.
func (e *Error) At(line int, offset int64) *Error {
	e.Line = line
	e.Offset = offset
	return e
}

// WithLayer records the layer name and returns e.
func (e *Error) WithLayer(layer string) *Error {
	e.Layer = layer
	return e
}

// WithFormat records the export format and returns e.
func (e *Error) WithFormat(format string) *Error {
	e.Format = format
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix but with
// the layer and position, when known.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	msg := e.Message
	if e.Layer != "" {
		msg = e.Layer + ": " + msg
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	return msg
}
