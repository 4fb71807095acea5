// Package io reads and writes the small documents around a conversion:
// layer manifests that name the Gerber file for each layer, and analysis
// reports encoded as JSON or YAML.
//
// # Manifest Format
//
//	{
//	  "name": "blinky",
//	  "thickness": 1.6,
//	  "layers": {
//	    "edge_cuts": "blinky-Edge_Cuts.gbr",
//	    "top_copper": "blinky-F_Cu.gbr"
//	  }
//	}
//
// Layer keys are the identifiers of [layer.Kind] or any alias accepted by
// [layer.ParseKind]. Relative paths are resolved against the manifest's
// directory by [LoadManifest].
package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

// Manifest lists the layer files of one board.
type Manifest struct {
	Name      string      `json:"name,omitempty"`
	Thickness float64     `json:"thickness,omitempty"`
	Layers    layer.Files `json:"layers"`
}

// ReadManifest decodes a manifest from r. Paths are returned as written.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var raw struct {
		Name      string            `json:"name"`
		Thickness float64           `json:"thickness"`
		Layers    map[string]string `json:"layers"`
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode manifest")
	}
	if raw.Thickness < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "manifest thickness must not be negative")
	}
	m := &Manifest{Name: raw.Name, Thickness: raw.Thickness, Layers: make(layer.Files, len(raw.Layers))}
	for name, path := range raw.Layers {
		k, err := layer.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if _, dup := m.Layers[k]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "manifest lists %s twice", k)
		}
		if path == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "manifest layer %s has no path", k)
		}
		m.Layers[k] = path
	}
	if len(m.Layers) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "manifest lists no layers")
	}
	return m, nil
}

// LoadManifest reads the manifest at path and makes relative layer paths
// relative to the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "manifest %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open manifest %s", path)
	}
	defer f.Close()

	m, err := ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for k, p := range m.Layers {
		if !filepath.IsAbs(p) {
			m.Layers[k] = filepath.Join(dir, p)
		}
	}
	return m, nil
}

// WriteManifest encodes m as indented JSON. Layer keys are written in
// their canonical form.
func WriteManifest(w io.Writer, m *Manifest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// SaveManifest writes m to path. Layer paths inside dir(path) are stored
// relative to it so the manifest can move with the board files.
func SaveManifest(path string, m *Manifest) error {
	dir := filepath.Dir(path)
	out := *m
	out.Layers = make(layer.Files, len(m.Layers))
	for k, p := range m.Layers {
		if rel, err := filepath.Rel(dir, p); err == nil && filepath.IsLocal(rel) {
			p = rel
		}
		out.Layers[k] = filepath.ToSlash(p)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIOWrite, err, "create %s", path)
	}
	if err := WriteManifest(f, &out); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeIOWrite, err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIOWrite, err, "write %s", path)
	}
	return nil
}
