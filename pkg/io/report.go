package io

import (
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/pcbmesh/pkg/errors"
)

// Encoding is a structured output encoding.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingYAML Encoding = "yaml"
)

// ParseEncoding accepts "json", "yaml" and "yml".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return EncodingJSON, nil
	case "yaml", "yml":
		return EncodingYAML, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unknown encoding %q (want json or yaml)", s)
}

// ContentType returns the MIME type of e.
func (e Encoding) ContentType() string {
	if e == EncodingYAML {
		return "application/yaml"
	}
	return "application/json"
}

// WriteReport encodes v to w. Types carry both json and yaml struct tags so
// the two encodings use the same field names.
func WriteReport(w io.Writer, v any, e Encoding) error {
	switch e {
	case EncodingJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(errors.ErrCodeEncoding, err, "encode json report")
		}
		return nil
	case EncodingYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(errors.ErrCodeEncoding, err, "encode yaml report")
		}
		if err := enc.Close(); err != nil {
			return errors.Wrap(errors.ErrCodeEncoding, err, "encode yaml report")
		}
		return nil
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unknown encoding %q", e)
}
