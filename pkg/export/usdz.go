package export

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/mesh"
)

const (
	usdzAlign       = 64
	usdzPaddingID   = 0x1986
	zipLocalHdrSize = 30
	zipVersion20    = 20
)

type usdzExporter struct{}

func (usdzExporter) Format() Format { return FormatUSDZ }

func (usdzExporter) Export(m *mesh.Mesh, opts Options) ([]Artifact, error) {
	var buf bytes.Buffer
	if err := WriteUSDZ(&buf, m, opts.stem()); err != nil {
		return nil, err
	}
	return []Artifact{{Name: opts.stem() + FormatUSDZ.Ext(), Data: buf.Bytes()}}, nil
}

// WriteUSDZ writes m as a USDZ package holding a single <stem>.usda layer.
// Entries are stored uncompressed with their data aligned to 64 bytes, as
// USDZ readers map the payload directly.
func WriteUSDZ(w io.Writer, m *mesh.Mesh, stem string) error {
	var usda bytes.Buffer
	if err := WriteUSDA(&usda, m); err != nil {
		return err
	}
	if err := writeAlignedZip(w, []Artifact{{Name: stem + ".usda", Data: usda.Bytes()}}); err != nil {
		return errors.Wrap(errors.ErrCodeIOWrite, err, "write package").WithFormat(string(FormatUSDZ))
	}
	return nil
}

// writeAlignedZip writes files as stored zip entries without data
// descriptors. Each local header carries a padding extra field sized so the
// entry data starts on a 64 byte boundary. Timestamps are left zero.
func writeAlignedZip(w io.Writer, files []Artifact) error {
	zw := zip.NewWriter(w)
	var offset int64
	for _, f := range files {
		used := offset + zipLocalHdrSize + int64(len(f.Name)) + 4
		pad := (usdzAlign - used%usdzAlign) % usdzAlign
		extra := make([]byte, 4+pad)
		binary.LittleEndian.PutUint16(extra[0:], usdzPaddingID)
		binary.LittleEndian.PutUint16(extra[2:], uint16(pad))

		fh := &zip.FileHeader{
			Name:               f.Name,
			Method:             zip.Store,
			CreatorVersion:     zipVersion20,
			ReaderVersion:      zipVersion20,
			CRC32:              crc32.ChecksumIEEE(f.Data),
			CompressedSize64:   uint64(len(f.Data)),
			UncompressedSize64: uint64(len(f.Data)),
			Extra:              extra,
		}
		fw, err := zw.CreateRaw(fh)
		if err != nil {
			return err
		}
		if _, err := fw.Write(f.Data); err != nil {
			return err
		}
		offset = used + pad + int64(len(f.Data))
	}
	return zw.Close()
}

// WriteUSDA writes m as a USD ASCII layer: a Board transform holding one
// mesh, one GeomSubset per material and a UsdPreviewSurface material per
// subset. Units are millimeters with Z up.
func WriteUSDA(w io.Writer, m *mesh.Mesh) error {
	if err := check(m, FormatUSDZ); err != nil {
		return err
	}
	s := newSink(w)
	s.str("#usda 1.0\n(\n    defaultPrim = \"Board\"\n    metersPerUnit = 0.001\n    upAxis = \"Z\"\n)\n\n")
	s.str("def Xform \"Board\" (\n    kind = \"component\"\n)\n{\n")
	s.str("    def Mesh \"Mesh\" (\n        prepend apiSchemas = [\"MaterialBindingAPI\"]\n    )\n    {\n")

	lo, hi := m.Bounds()
	s.str("        float3[] extent = [")
	vec(s, lo)
	s.str(", ")
	vec(s, hi)
	s.str("]\n")

	s.str("        int[] faceVertexCounts = [")
	for i := range m.Faces {
		if i > 0 {
			s.str(", ")
		}
		s.str("3")
	}
	s.str("]\n")

	s.str("        int[] faceVertexIndices = [")
	for i, f := range m.Faces {
		if i > 0 {
			s.str(", ")
		}
		s.uint(uint64(f[0]))
		s.str(", ")
		s.uint(uint64(f[1]))
		s.str(", ")
		s.uint(uint64(f[2]))
	}
	s.str("]\n")

	s.str("        point3f[] points = [")
	for i, v := range m.Vertices {
		if i > 0 {
			s.str(", ")
		}
		vec(s, v)
	}
	s.str("]\n")
	s.str("        uniform token subdivisionScheme = \"none\"\n")

	groups := m.Groups()
	if len(groups) == 1 {
		s.printf("        rel material:binding = </Board/Materials/%s>\n", m.Materials[groups[0].Material].Name)
	} else {
		s.str("        uniform token subsetFamily:materialBind:familyType = \"partition\"\n")
		for _, g := range groups {
			name := m.Materials[g.Material].Name
			s.printf("\n        def GeomSubset \"%s\" (\n            prepend apiSchemas = [\"MaterialBindingAPI\"]\n        )\n        {\n", name)
			s.str("            uniform token elementType = \"face\"\n")
			s.str("            uniform token familyName = \"materialBind\"\n")
			s.str("            int[] indices = [")
			for i, fi := range g.Faces {
				if i > 0 {
					s.str(", ")
				}
				s.uint(uint64(fi))
			}
			s.str("]\n")
			s.printf("            rel material:binding = </Board/Materials/%s>\n        }\n", name)
		}
	}
	s.str("    }\n\n    def Scope \"Materials\"\n    {\n")
	for i, g := range groups {
		if i > 0 {
			s.str("\n")
		}
		material(s, m.Materials[g.Material])
	}
	s.str("    }\n}\n")
	return s.flush(FormatUSDZ)
}

func vec(s *sink, v mesh.Vec3) {
	s.str("(")
	s.float(v.X)
	s.str(", ")
	s.float(v.Y)
	s.str(", ")
	s.float(v.Z)
	s.str(")")
}

func material(s *sink, mat layer.Material) {
	s.printf("        def Material \"%s\"\n        {\n", mat.Name)
	s.printf("            token outputs:surface.connect = </Board/Materials/%s/Surface.outputs:surface>\n\n", mat.Name)
	s.str("            def Shader \"Surface\"\n            {\n")
	s.str("                uniform token info:id = \"UsdPreviewSurface\"\n")
	s.str("                color3f inputs:diffuseColor = (")
	for i, c := range mat.Color {
		if i > 0 {
			s.str(", ")
		}
		s.float(c)
	}
	s.str(")\n")
	metallic := 0.0
	if mat.Specular >= 0.5 {
		metallic = 1
	}
	s.str("                float inputs:metallic = ")
	s.float(metallic)
	s.str("\n                float inputs:roughness = ")
	s.float(1 - 0.6*mat.Specular)
	s.str("\n                token outputs:surface\n            }\n        }\n")
}
