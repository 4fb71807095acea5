package assemble

import (
	"sort"

	"zappem.net/pub/math/polygon"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
)

// union merges overlapping fills into shapes with holes. Fills are grouped
// by bounding-box overlap first so that isolated pads and traces skip the
// boolean step entirely.
func (a *assembler) union(fills []geom.Polygon) ([]geom.Shape, error) {
	clean := make([]geom.Polygon, 0, len(fills))
	for _, p := range fills {
		r := p.Clean(a.snap)
		if len(r) < 3 {
			a.res.Stats.Degenerate++
			continue
		}
		clean = append(clean, r.Oriented(true))
	}
	if n := a.res.Stats.Degenerate; n > 0 {
		a.warn("degenerate", "%d degenerate polygons dropped", n)
	}

	var shapes []geom.Shape
	for _, group := range clusters(clean, a.opts.Epsilon) {
		if len(group) == 1 {
			shapes = append(shapes, geom.Shape{Outer: clean[group[0]]})
			continue
		}
		if len(group) > a.opts.MaxUnionShapes {
			return nil, errors.New(errors.ErrCodeUnionLimit,
				"%d overlapping polygons exceed the union limit of %d", len(group), a.opts.MaxUnionShapes)
		}
		polys := make([]geom.Polygon, len(group))
		for i, idx := range group {
			polys[i] = clean[idx]
		}
		merged, err := a.unionGroup(polys)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, merged...)
	}
	sortShapes(shapes)
	return shapes, nil
}

func (a *assembler) unionGroup(polys []geom.Polygon) ([]geom.Shape, error) {
	var set *polygon.Shapes
	for _, p := range polys {
		pts := make([]polygon.Point, len(p))
		for i, v := range p {
			pts[i] = polygon.Point{X: v.X, Y: v.Y}
		}
		var err error
		if set, err = set.Append(pts...); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "prepare union")
		}
	}
	set.Union()

	var outers, holes []geom.Polygon
	for _, s := range set.P {
		ring := make(geom.Polygon, len(s.PS))
		for i, v := range s.PS {
			ring[i] = geom.Pt(v.X, v.Y)
		}
		ring = ring.Clean(a.snap)
		if len(ring) < 3 {
			continue
		}
		if s.Hole {
			holes = append(holes, ring)
		} else {
			outers = append(outers, ring)
		}
	}
	a.opts.Logger.Debug("union", "layer", a.opts.Layer, "in", len(polys), "outers", len(outers), "holes", len(holes))
	return geom.AssignHoles(outers, holes), nil
}

// clusters partitions polys into groups whose bounding boxes overlap
// transitively. Groups are ordered by their first member and list members
// in input order.
func clusters(polys []geom.Polygon, eps float64) [][]int {
	n := len(polys)
	bounds := make([]geom.Rect, n)
	order := make([]int, n)
	for i, p := range polys {
		bounds[i] = p.Bounds()
		order[i] = i
	}
	sort.Slice(order, func(x, y int) bool {
		return bounds[order[x]].Min.X < bounds[order[y]].Min.X
	})

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	// Sweep along x keeping the boxes whose x-extent is still open.
	var active []int
	for _, i := range order {
		keep := active[:0]
		for _, j := range active {
			if bounds[j].Max.X+eps >= bounds[i].Min.X {
				keep = append(keep, j)
			}
		}
		active = keep
		for _, j := range active {
			if bounds[i].Overlaps(bounds[j], eps) {
				ri, rj := find(i), find(j)
				if ri != rj {
					if ri < rj {
						parent[rj] = ri
					} else {
						parent[ri] = rj
					}
				}
			}
		}
		active = append(active, i)
	}

	index := make(map[int]int)
	var groups [][]int
	for i := 0; i < n; i++ {
		r := find(i)
		g, ok := index[r]
		if !ok {
			g = len(groups)
			index[r] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// sortShapes orders shapes by the lower-left corner of their bounds so that
// output does not depend on union internals.
func sortShapes(shapes []geom.Shape) {
	sort.SliceStable(shapes, func(i, j int) bool {
		bi, bj := shapes[i].Bounds(), shapes[j].Bounds()
		if bi.Min.X != bj.Min.X {
			return bi.Min.X < bj.Min.X
		}
		return bi.Min.Y < bj.Min.Y
	})
}
