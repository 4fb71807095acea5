// Package mesh extrudes a composited board into one indexed triangle mesh.
//
// Every shape of every layer becomes a prism between the layer's ZBase and
// ZTop: a top cap wound counter-clockwise seen from +z, a bottom cap with the
// reverse winding, and two wall triangles per ring edge facing outwards.
// Caps and walls share vertices.
package mesh

import (
	"math"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

// Vec3 is a point in board space, in mm.
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Len() float64 { return math.Sqrt(a.Dot(a)) }

// Normalized returns a scaled to unit length, or the zero vector when a has
// no length.
func (a Vec3) Normalized() Vec3 {
	l := a.Len()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{a.X / l, a.Y / l, a.Z / l}
}

// Mesh is an indexed triangle mesh. FaceMaterial is parallel to Faces and
// indexes Materials.
type Mesh struct {
	Vertices     []Vec3
	Faces        [][3]uint32
	FaceMaterial []int
	Materials    []layer.Material
}

// Empty reports whether m has no geometry.
func (m *Mesh) Empty() bool { return m == nil || len(m.Vertices) == 0 }

// Bounds returns the axis-aligned extent of the vertices.
func (m *Mesh) Bounds() (lo, hi Vec3) {
	if m.Empty() {
		return Vec3{}, Vec3{}
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = Vec3{math.Min(lo.X, v.X), math.Min(lo.Y, v.Y), math.Min(lo.Z, v.Z)}
		hi = Vec3{math.Max(hi.X, v.X), math.Max(hi.Y, v.Y), math.Max(hi.Z, v.Z)}
	}
	return lo, hi
}

// Normal returns the unit normal of face i following its winding.
func (m *Mesh) Normal(i int) Vec3 {
	f := m.Faces[i]
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	return b.Sub(a).Cross(c.Sub(a)).Normalized()
}

// Volume returns the signed volume enclosed by the faces. It is positive
// when every closed part of the mesh is wound outwards.
func (m *Mesh) Volume() float64 {
	var v float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		v += a.Dot(b.Cross(c))
	}
	return v / 6
}

// Validate checks that m is non-empty and internally consistent: every face
// index is in range, and every face has a valid material.
func (m *Mesh) Validate() error {
	if m.Empty() {
		return errors.New(errors.ErrCodeEmptyMesh, "mesh has no vertices")
	}
	if len(m.FaceMaterial) != len(m.Faces) {
		return errors.New(errors.ErrCodeEncoding,
			"%d faces but %d face materials", len(m.Faces), len(m.FaceMaterial))
	}
	n := uint32(len(m.Vertices))
	for i, f := range m.Faces {
		if f[0] >= n || f[1] >= n || f[2] >= n {
			return errors.New(errors.ErrCodeEncoding, "face %d references a vertex out of range", i)
		}
		if mi := m.FaceMaterial[i]; mi < 0 || mi >= len(m.Materials) {
			return errors.New(errors.ErrCodeEncoding, "face %d references material %d out of range", i, mi)
		}
	}
	return nil
}

// Group is a run of faces sharing one material.
type Group struct {
	Material int
	Faces    []int
}

// Groups returns the face indices of each material in material order.
// Materials without faces are omitted.
func (m *Mesh) Groups() []Group {
	byMat := make([][]int, len(m.Materials))
	for i, mi := range m.FaceMaterial {
		if mi >= 0 && mi < len(byMat) {
			byMat[mi] = append(byMat[mi], i)
		}
	}
	var out []Group
	for mi, faces := range byMat {
		if len(faces) > 0 {
			out = append(out, Group{Material: mi, Faces: faces})
		}
	}
	return out
}
