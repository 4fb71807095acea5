package export

import (
	"bytes"
	"io"

	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/mesh"
)

type objExporter struct{}

func (objExporter) Format() Format { return FormatOBJ }

func (objExporter) Export(m *mesh.Mesh, opts Options) ([]Artifact, error) {
	stem := opts.stem()
	mtl := ""
	if opts.Colors {
		mtl = stem + ".mtl"
	}
	var obj bytes.Buffer
	if err := WriteOBJ(&obj, m, mtl); err != nil {
		return nil, err
	}
	out := []Artifact{{Name: stem + FormatOBJ.Ext(), Data: obj.Bytes()}}
	if opts.Colors {
		var lib bytes.Buffer
		if err := WriteMTL(&lib, m.Materials); err != nil {
			return nil, err
		}
		out = append(out, Artifact{Name: mtl, Data: lib.Bytes()})
	}
	return out, nil
}

// WriteOBJ writes m as Wavefront OBJ. When mtlLib is non-empty the file
// references it and faces are grouped per material with usemtl; otherwise
// all faces form one Board group.
func WriteOBJ(w io.Writer, m *mesh.Mesh, mtlLib string) error {
	if err := check(m, FormatOBJ); err != nil {
		return err
	}
	s := newSink(w)
	s.str("# pcbmesh\n")
	if mtlLib != "" {
		s.str("mtllib ")
		s.str(mtlLib)
		s.str("\n")
	}
	s.str("o Board\n")
	for _, v := range m.Vertices {
		s.str("v ")
		s.float(v.X)
		s.str(" ")
		s.float(v.Y)
		s.str(" ")
		s.float(v.Z)
		s.str("\n")
	}

	face := func(i int) {
		f := m.Faces[i]
		s.str("f ")
		s.uint(uint64(f[0]) + 1)
		s.str(" ")
		s.uint(uint64(f[1]) + 1)
		s.str(" ")
		s.uint(uint64(f[2]) + 1)
		s.str("\n")
	}
	if mtlLib == "" {
		s.str("g Board\n")
		for i := range m.Faces {
			face(i)
		}
		return s.flush(FormatOBJ)
	}
	for _, g := range m.Groups() {
		name := m.Materials[g.Material].Name
		s.printf("g %s\nusemtl %s\n", name, name)
		for _, i := range g.Faces {
			face(i)
		}
	}
	return s.flush(FormatOBJ)
}

// WriteMTL writes one newmtl block per distinct material name.
func WriteMTL(w io.Writer, materials []layer.Material) error {
	s := newSink(w)
	s.str("# pcbmesh materials\n")
	seen := make(map[string]bool, len(materials))
	rgb := func(key string, c layer.RGB) {
		s.str(key)
		for _, v := range c {
			s.str(" ")
			s.float(v)
		}
		s.str("\n")
	}
	for _, mat := range materials {
		if seen[mat.Name] {
			continue
		}
		seen[mat.Name] = true
		s.printf("\nnewmtl %s\n", mat.Name)
		rgb("Ka", mat.Ambient())
		rgb("Kd", mat.Color)
		rgb("Ks", layer.RGB{mat.Specular, mat.Specular, mat.Specular})
		s.str("d 1.0\nillum 2\n")
		if mat.Texture != "" {
			s.printf("map_Kd %s\n", mat.Texture)
		}
	}
	return s.flush(FormatOBJ)
}
