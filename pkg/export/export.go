// Package export serializes a triangle mesh to OBJ (with an MTL material
// library), binary STL and USDZ.
//
// Every writer is deterministic: the same mesh always produces the same
// bytes. Writers validate the mesh first and fail with EMPTY_MESH or
// ENCODING before anything is written; sink failures surface as IO_WRITE.
//
// # Formats
//
//   - obj: Wavefront OBJ. With colors, an MTL file is produced next to it
//     and faces are grouped per material.
//   - stl: binary little-endian STL. Colors are not representable.
//   - usdz: an uncompressed, 64-byte aligned zip holding one USDA layer with
//     a UsdPreviewSurface material per layer.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/mesh"
)

// Format is an output file format.
type Format string

const (
	FormatOBJ  Format = "obj"
	FormatSTL  Format = "stl"
	FormatUSDZ Format = "usdz"
)

// Formats lists the supported formats.
func Formats() []Format { return []Format{FormatOBJ, FormatSTL, FormatUSDZ} }

// ParseFormat parses a format name case-insensitively. A leading dot is
// accepted so file extensions can be passed directly.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unknown output format %q (want obj, stl or usdz)", s)
}

// Ext returns the file extension of f including the dot.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type of the primary artifact of f.
func (f Format) ContentType() string {
	switch f {
	case FormatOBJ:
		return "model/obj"
	case FormatSTL:
		return "model/stl"
	case FormatUSDZ:
		return "model/vnd.usdz+zip"
	}
	return "application/octet-stream"
}

// Options configures an export.
type Options struct {
	// Stem is the base name shared by all artifacts, without extension and
	// without directory.
	Stem string

	// Colors writes per-material groups and the MTL library for OBJ.
	Colors bool
}

func (o *Options) stem() string {
	if o.Stem == "" {
		return "board"
	}
	return o.Stem
}

// Artifact is one output file.
type Artifact struct {
	Name string
	Data []byte
}

// Exporter turns a mesh into artifacts.
type Exporter interface {
	Format() Format
	Export(m *mesh.Mesh, opts Options) ([]Artifact, error)
}

// For returns the exporter for f.
func For(f Format) (Exporter, error) {
	switch f {
	case FormatOBJ:
		return objExporter{}, nil
	case FormatSTL:
		return stlExporter{}, nil
	case FormatUSDZ:
		return usdzExporter{}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown output format %q", f)
}

// Export is a shortcut for For(f) followed by Export.
func Export(f Format, m *mesh.Mesh, opts Options) ([]Artifact, error) {
	e, err := For(f)
	if err != nil {
		return nil, err
	}
	return e.Export(m, opts)
}

// WriteFiles writes artifacts into dir. Each file is written to a temporary
// name and renamed into place; if any write fails, files already written by
// this call are removed so no partial output remains.
func WriteFiles(dir string, artifacts []Artifact) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIOWrite, err, "create output directory %s", dir)
	}
	var written []string
	cleanup := func() {
		for _, p := range written {
			_ = os.Remove(p)
		}
	}
	for _, a := range artifacts {
		if err := errors.ValidateUploadName(a.Name); err != nil {
			cleanup()
			return nil, err
		}
		path := filepath.Join(dir, a.Name)
		if err := writeAtomic(path, a.Data); err != nil {
			cleanup()
			return nil, errors.Wrap(errors.ErrCodeIOWrite, err, "write %s", path)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// sink wraps a buffered writer and remembers the first error so callers
// can write freely and check once.
type sink struct {
	w   *bufio.Writer
	err error
	buf []byte
}

func newSink(w io.Writer) *sink { return &sink{w: bufio.NewWriterSize(w, 64<<10)} }

func (s *sink) write(p []byte) {
	if s.err == nil {
		_, s.err = s.w.Write(p)
	}
}

func (s *sink) str(v string) {
	if s.err == nil {
		_, s.err = s.w.WriteString(v)
	}
}

func (s *sink) printf(format string, args ...any) {
	if s.err == nil {
		_, s.err = fmt.Fprintf(s.w, format, args...)
	}
}

// float writes v with six decimals. Negative zero is written as zero.
func (s *sink) float(v float64) {
	if v == 0 {
		v = 0
	}
	s.buf = strconv.AppendFloat(s.buf[:0], v, 'f', 6, 64)
	s.write(s.buf)
}

func (s *sink) uint(v uint64) {
	s.buf = strconv.AppendUint(s.buf[:0], v, 10)
	s.write(s.buf)
}

func (s *sink) flush(f Format) error {
	if s.err == nil {
		s.err = s.w.Flush()
	}
	if s.err != nil {
		return errors.Wrap(errors.ErrCodeIOWrite, s.err, "write output").WithFormat(string(f))
	}
	return nil
}

// check validates m before encoding and tags the error with the format.
func check(m *mesh.Mesh, f Format) error {
	if err := m.Validate(); err != nil {
		if e, ok := errors.As(err); ok {
			return e.WithFormat(string(f))
		}
		return err
	}
	return nil
}
