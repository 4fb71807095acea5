package export

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/mesh"
)

// STL record sizes.
const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// stlHeader must not start with "solid", which would make readers treat
// the file as ASCII STL.
var stlHeader = func() (h [stlHeaderSize]byte) {
	copy(h[:], "pcbmesh binary STL, units mm")
	return h
}()

type stlExporter struct{}

func (stlExporter) Format() Format { return FormatSTL }

func (stlExporter) Export(m *mesh.Mesh, opts Options) ([]Artifact, error) {
	var buf bytes.Buffer
	if err := WriteSTL(&buf, m); err != nil {
		return nil, err
	}
	return []Artifact{{Name: opts.stem() + FormatSTL.Ext(), Data: buf.Bytes()}}, nil
}

// WriteSTL writes m as binary STL: an 80 byte header, the triangle count,
// and 50 bytes per triangle. Normals follow the face winding; degenerate
// triangles get a zero normal.
func WriteSTL(w io.Writer, m *mesh.Mesh) error {
	if err := check(m, FormatSTL); err != nil {
		return err
	}
	if uint64(len(m.Faces)) > math.MaxUint32 {
		return errors.New(errors.ErrCodeEncoding, "%d triangles exceed the STL limit", len(m.Faces)).WithFormat(string(FormatSTL))
	}
	s := newSink(w)
	s.write(stlHeader[:])

	var rec [stlTriangleSize]byte
	binary.LittleEndian.PutUint32(rec[:4], uint32(len(m.Faces)))
	s.write(rec[:4])

	put := func(off int, v float64) {
		binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(float32(v)))
	}
	for i, f := range m.Faces {
		n := m.Normal(i)
		put(0, n.X)
		put(4, n.Y)
		put(8, n.Z)
		for k, vi := range f {
			v := m.Vertices[vi]
			put(12+k*12, v.X)
			put(16+k*12, v.Y)
			put(20+k*12, v.Z)
		}
		rec[48], rec[49] = 0, 0
		s.write(rec[:])
	}
	return s.flush(FormatSTL)
}
