package mesh

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pcbmesh/pkg/compose"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

// DefaultEpsilon is the snapping grid applied before triangulation, in mm.
const DefaultEpsilon = 1e-4

// Options configures Build.
type Options struct {
	Epsilon float64
	Logger  *log.Logger
}

// SetDefaults fills zero fields.
func (o *Options) SetDefaults() {
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Issue records a shape or hole the builder skipped. Hole is -1 when the
// whole shape was skipped.
type Issue struct {
	Layer layer.Kind
	Shape int
	Hole  int
	Err   error
}

// LayerStats summarizes the geometry emitted for one layer.
type LayerStats struct {
	Kind      layer.Kind `json:"kind" yaml:"kind"`
	Shapes    int        `json:"shapes" yaml:"shapes"`
	Vertices  int        `json:"vertices" yaml:"vertices"`
	Triangles int        `json:"triangles" yaml:"triangles"`
}

// Report describes what Build produced and what it skipped.
type Report struct {
	Layers []LayerStats
	Issues []Issue
}

// Skipped returns the number of shapes dropped entirely.
func (r *Report) Skipped() int {
	n := 0
	for _, is := range r.Issues {
		if is.Hole < 0 {
			n++
		}
	}
	return n
}

// Build extrudes every shape of every layer of b. Shapes that cannot be
// triangulated are reported and skipped; the build always completes.
func Build(b *compose.Board, opts Options) (*Mesh, *Report) {
	opts.SetDefaults()
	snap := geom.NewSnapper(opts.Epsilon)
	m := &Mesh{Materials: append([]layer.Material(nil), b.Materials...)}
	rep := &Report{}

	for _, l := range b.Layers {
		st := LayerStats{Kind: l.Kind}
		v0, f0 := len(m.Vertices), len(m.Faces)
		for i, s := range l.Shapes {
			sh, dropped, err := prepare(s, snap)
			for _, h := range dropped {
				rep.Issues = append(rep.Issues, Issue{Layer: l.Kind, Shape: i, Hole: h,
					Err: errors.New(errors.ErrCodeDegeneratePolygon, "hole with fewer than 3 distinct points dropped")})
			}
			var tris [][3]int
			if err == nil {
				tris, err = Triangulate(sh)
			}
			if err != nil {
				rep.Issues = append(rep.Issues, Issue{Layer: l.Kind, Shape: i, Hole: -1, Err: err})
				continue
			}
			m.addPrism(sh, tris, l.ZBase, l.ZTop, l.Material)
			st.Shapes++
		}
		st.Vertices = len(m.Vertices) - v0
		st.Triangles = len(m.Faces) - f0
		rep.Layers = append(rep.Layers, st)
		opts.Logger.Debug("extruded layer", "layer", l.Kind, "shapes", st.Shapes,
			"vertices", st.Vertices, "triangles", st.Triangles)
	}
	for _, is := range rep.Issues {
		opts.Logger.Warn("skipped geometry", "layer", is.Layer, "shape", is.Shape, "hole", is.Hole, "err", is.Err)
	}
	return m, rep
}

// prepare cleans and orients the rings of s. Degenerate holes are dropped
// and their indices returned.
func prepare(s geom.Shape, snap geom.Snapper) (geom.Shape, []int, error) {
	outer := s.Outer.Clean(snap)
	if len(outer) < 3 {
		return geom.Shape{}, nil, errors.New(errors.ErrCodeDegeneratePolygon,
			"outer ring has fewer than 3 distinct points")
	}
	out := geom.Shape{Outer: outer.Oriented(true)}
	var dropped []int
	for i, h := range s.Holes {
		hc := h.Clean(snap)
		if len(hc) < 3 {
			dropped = append(dropped, i)
			continue
		}
		out.Holes = append(out.Holes, hc.Oriented(false))
	}
	return out, dropped, nil
}

// addPrism appends the extrusion of s between zb and zt. tris indexes the
// rings of s as returned by Triangulate.
func (m *Mesh) addPrism(s geom.Shape, tris [][3]int, zb, zt float64, material int) {
	base := uint32(len(m.Vertices))
	nv := uint32(s.VertexCount())
	rings := append([]geom.Polygon{s.Outer}, s.Holes...)

	for _, z := range []float64{zb, zt} {
		for _, r := range rings {
			for _, p := range r {
				m.Vertices = append(m.Vertices, Vec3{p.X, p.Y, z})
			}
		}
	}
	bot := func(i int) uint32 { return base + uint32(i) }
	top := func(i int) uint32 { return base + nv + uint32(i) }

	face := func(a, b, c uint32) {
		m.Faces = append(m.Faces, [3]uint32{a, b, c})
		m.FaceMaterial = append(m.FaceMaterial, material)
	}
	for _, t := range tris {
		face(top(t[0]), top(t[1]), top(t[2]))
	}
	for _, t := range tris {
		face(bot(t[0]), bot(t[2]), bot(t[1]))
	}

	// Outer rings run counter-clockwise and holes clockwise, so the same
	// winding rule faces every wall away from the material.
	start := 0
	for _, r := range rings {
		n := len(r)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			bi, bj := bot(start+i), bot(start+j)
			ti, tj := top(start+i), top(start+j)
			face(bi, bj, tj)
			face(bi, tj, ti)
		}
		start += n
	}
}
