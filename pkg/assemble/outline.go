package assemble

import (
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
)

// outline chains the recorded center lines into closed contours and nests
// them by containment.
func (a *assembler) outline() ([]geom.Shape, error) {
	closed, open := chain(a.paths, a.snap)
	for _, c := range open {
		a.res.Stats.OpenChains++
		a.warn("", "outline chain from (%.4f, %.4f) to (%.4f, %.4f) is open and was closed",
			c[0].X, c[0].Y, c[len(c)-1].X, c[len(c)-1].Y)
	}
	candidates := append(append(append([]geom.Polygon(nil), a.rings...), closed...), open...)

	var rings []geom.Polygon
	for _, c := range candidates {
		r := c.Simplify(a.snap)
		if x, bad := r.FindCrossing(); bad {
			return nil, errors.New(errors.ErrCodeSelfIntersection,
				"outline contour crosses itself at (%.4f, %.4f)", x.At.X, x.At.Y)
		}
		if r.Degenerate() {
			a.res.Stats.Degenerate++
			a.warn("", "degenerate outline contour dropped")
			continue
		}
		rings = append(rings, r)
	}
	shapes := geom.Nest(rings)
	sortShapes(shapes)
	return shapes, nil
}

// chain joins polylines whose endpoints coincide on the snapping grid.
// Paths are reversed as needed. Chains whose ends meet are returned as
// closed rings; the rest are returned as open polylines.
func chain(paths []geom.Polygon, snap geom.Snapper) (closed, open []geom.Polygon) {
	type end struct {
		path  int
		first bool
	}
	ends := make(map[geom.Point][]end)
	var live []int
	for i, p := range paths {
		if len(p) < 2 {
			continue
		}
		s, e := snap.Snap(p[0]), snap.Snap(p[len(p)-1])
		if s == e && len(p) == 2 {
			continue
		}
		ends[s] = append(ends[s], end{i, true})
		ends[e] = append(ends[e], end{i, false})
		live = append(live, i)
	}

	used := make([]bool, len(paths))
	// next finds an unused path touching pt and returns its points oriented
	// to start at pt.
	next := func(pt geom.Point) []geom.Point {
		for _, e := range ends[snap.Snap(pt)] {
			if used[e.path] {
				continue
			}
			used[e.path] = true
			if e.first {
				return paths[e.path]
			}
			return paths[e.path].Reversed()
		}
		return nil
	}

	for _, i := range live {
		if used[i] {
			continue
		}
		used[i] = true
		c := append(geom.Polygon(nil), paths[i]...)
		isClosed := func() bool { return snap.Snap(c[0]) == snap.Snap(c[len(c)-1]) && len(c) > 2 }

		for reversed := false; ; {
			for !isClosed() {
				p := next(c[len(c)-1])
				if p == nil {
					break
				}
				c = append(c, p[1:]...)
			}
			if isClosed() || reversed {
				break
			}
			// Extend the other end as well.
			c = c.Reversed()
			reversed = true
		}

		if isClosed() {
			closed = append(closed, c[:len(c)-1])
		} else {
			open = append(open, c)
		}
	}
	return closed, open
}
