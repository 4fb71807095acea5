package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestErrorContext(t *testing.T) {
	err := New(ErrCodeMalformedCommand, "unknown opcode %q", "Q7").At(12, 340).WithLayer("top_copper")

	expected := `MALFORMED_COMMAND: top_copper: unknown opcode "Q7" (line 12, offset 340)`
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}

	if got := UserMessage(err); got != `top_copper: unknown opcode "Q7" (line 12)` {
		t.Errorf("UserMessage() = %v", got)
	}

	exp := New(ErrCodeEmptyMesh, "mesh has no vertices").WithFormat("stl")
	if exp.Error() != "EMPTY_MESH: stl: mesh has no vertices" {
		t.Errorf("Error() = %v", exp.Error())
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeIOWrite, cause, "failed to write")

	if err.Code != ErrCodeIOWrite {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeIOWrite)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeTruncatedFile, "test"),
			code:     ErrCodeTruncatedFile,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeTruncatedFile, "test"),
			code:     ErrCodeIOWrite,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeIOWrite, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeIOWrite,
			expected: true,
		},
		{
			name:     "fmt wrapped",
			err:      fmt.Errorf("parse: %w", New(ErrCodeMalformedCommand, "inner")),
			code:     ErrCodeMalformedCommand,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		code Code
		want Category
	}{
		{ErrCodeMalformedCommand, CategoryParse},
		{ErrCodeUnsupportedAperture, CategoryParse},
		{ErrCodeTruncatedFile, CategoryParse},
		{ErrCodeUnclosedRegion, CategoryAssembly},
		{ErrCodeDanglingAperture, CategoryAssembly},
		{ErrCodeDegeneratePolygon, CategoryAssembly},
		{ErrCodeSelfIntersection, CategoryAssembly},
		{ErrCodeMissingEdgeCuts, CategoryComposition},
		{ErrCodeEmptyMesh, CategoryExport},
		{ErrCodeIOWrite, CategoryExport},
		{ErrCodeEncoding, CategoryExport},
		{ErrCodeInvalidFormat, CategoryInput},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Category(); got != tt.want {
				t.Errorf("Category() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeDanglingAperture, "test"),
			expected: ErrCodeDanglingAperture,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}
