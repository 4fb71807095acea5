package errors

import (
	"math"
	"path/filepath"
	"strings"
	"unicode"
)

// ValidateOutputStem validates an output path stem (a path without
// extension) before any file is created.
//
// The rules are:
//   - No empty stems
//   - No control characters or null bytes
//   - No trailing path separator (the stem must name a file)
//   - Maximum length of 1024 characters
func ValidateOutputStem(stem string) error {
	if stem == "" {
		return New(ErrCodeInvalidPath, "output path cannot be empty")
	}

	const maxStemLength = 1024
	if len(stem) > maxStemLength {
		return New(ErrCodeInvalidPath, "output path too long (max %d characters)", maxStemLength)
	}

	for _, r := range stem {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output path contains invalid characters")
		}
	}

	if strings.HasSuffix(stem, "/") || strings.HasSuffix(stem, string(filepath.Separator)) {
		return New(ErrCodeInvalidPath, "output path must name a file, not a directory: %q", stem)
	}

	if base := filepath.Base(stem); base == "." || base == ".." {
		return New(ErrCodeInvalidPath, "output path must name a file: %q", stem)
	}

	return nil
}

// ValidateUploadName validates a client-supplied file name for an uploaded
// layer. It must be a simple basename without path components.
func ValidateUploadName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "file name cannot be empty")
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "file name cannot contain path separators")
	}

	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidPath, "file name cannot contain path traversal sequences (..)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "file name contains invalid characters")
		}
	}

	return nil
}

// ValidateThickness validates a positive, finite board thickness in mm.
func ValidateThickness(mm float64) error {
	if math.IsNaN(mm) || mm <= 0 || mm > 1000 {
		return New(ErrCodeInvalidInput, "board thickness must be in (0, 1000] mm, got %v", mm)
	}
	return nil
}
