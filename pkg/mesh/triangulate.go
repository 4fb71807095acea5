package mesh

import (
	"math"
	"sort"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
)

// Triangulate splits a normalized shape (counter-clockwise outer, clockwise
// holes) into counter-clockwise triangles. Indices refer to the vertices of
// s.Outer followed by those of each hole in order. Holes are bridged into
// the outer ring first, so a shape with n vertices and h holes yields
// n+2h-2 triangles.
func Triangulate(s geom.Shape) ([][3]int, error) {
	if len(s.Outer) < 3 {
		return nil, errors.New(errors.ErrCodeDegeneratePolygon, "outer ring has %d vertices", len(s.Outer))
	}
	pts := make([]geom.Point, 0, s.VertexCount())
	pts = append(pts, s.Outer...)
	ring := make([]int, len(s.Outer))
	for i := range ring {
		ring[i] = i
	}

	type hole struct {
		start, n int
		right    int // index of the rightmost vertex
	}
	holes := make([]hole, 0, len(s.Holes))
	for _, h := range s.Holes {
		hl := hole{start: len(pts), n: len(h), right: len(pts)}
		pts = append(pts, h...)
		if len(h) < 3 {
			continue
		}
		for i := hl.start; i < hl.start+hl.n; i++ {
			if pts[i].X > pts[hl.right].X || (pts[i].X == pts[hl.right].X && pts[i].Y < pts[hl.right].Y) {
				hl.right = i
			}
		}
		holes = append(holes, hl)
	}
	// Rightmost holes first, so later bridges never cross earlier ones.
	sort.SliceStable(holes, func(i, j int) bool {
		return pts[holes[i].right].X > pts[holes[j].right].X
	})

	for _, h := range holes {
		at, ok := bridge(pts, ring, pts[h.right])
		if !ok {
			return nil, errors.New(errors.ErrCodeDegeneratePolygon, "hole at (%.4f, %.4f) lies outside its outer ring",
				pts[h.right].X, pts[h.right].Y)
		}
		merged := make([]int, 0, len(ring)+h.n+2)
		merged = append(merged, ring[:at+1]...)
		for k := 0; k <= h.n; k++ {
			merged = append(merged, h.start+(h.right-h.start+k)%h.n)
		}
		merged = append(merged, ring[at])
		merged = append(merged, ring[at+1:]...)
		ring = merged
	}
	return earClip(pts, ring), nil
}

// bridge finds the position in ring of a vertex visible from m, the
// rightmost vertex of a hole. A ray cast from m towards +x hits the nearest
// ring edge; the edge endpoint with the larger x is visible unless a reflex
// vertex lies inside the triangle formed by m, the hit point and that
// endpoint, in which case the reflex vertex with the smallest angle to the
// ray is used instead.
func bridge(pts []geom.Point, ring []int, m geom.Point) (int, bool) {
	n := len(ring)
	best := -1
	hitX := math.Inf(1)
	for i := 0; i < n; i++ {
		a, b := pts[ring[i]], pts[ring[(i+1)%n]]
		if a.Y == b.Y || (a.Y-m.Y)*(b.Y-m.Y) > 0 {
			continue
		}
		x := a.X + (m.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if x < m.X || x >= hitX {
			continue
		}
		hitX = x
		switch {
		case a.Y == m.Y && a.X == x:
			best = i
		case b.Y == m.Y && b.X == x:
			best = (i + 1) % n
		case a.X > b.X:
			best = i
		default:
			best = (i + 1) % n
		}
	}
	if best < 0 {
		return 0, false
	}
	hit := geom.Pt(hitX, m.Y)
	p := pts[ring[best]]
	if p == hit {
		return resolve(pts, ring, best, m), true
	}

	tanBest := math.Inf(1)
	distBest := math.Inf(1)
	cand := best
	for i := 0; i < n; i++ {
		if i == best {
			continue
		}
		r := pts[ring[i]]
		if r == p || r.X < m.X {
			continue
		}
		prev, next := pts[ring[(i+n-1)%n]], pts[ring[(i+1)%n]]
		if geom.Cross3(prev, r, next) >= 0 {
			continue // not reflex
		}
		if !inTriangle(m, hit, p, r) {
			continue
		}
		dx := r.X - m.X
		if dx == 0 {
			continue
		}
		tan := math.Abs(r.Y-m.Y) / dx
		d := r.Dist(m)
		if tan < tanBest || (tan == tanBest && d < distBest) {
			cand, tanBest, distBest = i, tan, d
		}
	}
	return resolve(pts, ring, cand, m), true
}

// resolve picks, among the ring positions sharing the point at position i,
// the one whose interior angle contains m. Earlier bridges visit their end
// vertices twice and only one copy faces m.
func resolve(pts []geom.Point, ring []int, i int, m geom.Point) int {
	n := len(ring)
	p := pts[ring[i]]
	for j := 0; j < n; j++ {
		if pts[ring[j]] != p {
			continue
		}
		prev, next := pts[ring[(j+n-1)%n]], pts[ring[(j+1)%n]]
		left1, left2 := geom.Cross3(prev, p, m) > 0, geom.Cross3(p, next, m) > 0
		if geom.Cross3(prev, p, next) >= 0 {
			if left1 && left2 {
				return j
			}
		} else if left1 || left2 {
			return j
		}
	}
	return i
}

// inTriangle reports whether p lies inside or on triangle abc of either
// winding.
func inTriangle(a, b, c, p geom.Point) bool {
	d1 := geom.Cross3(a, b, p)
	d2 := geom.Cross3(b, c, p)
	d3 := geom.Cross3(c, a, p)
	neg := d1 < 0 || d2 < 0 || d3 < 0
	pos := d1 > 0 || d2 > 0 || d3 > 0
	return !(neg && pos)
}

// earClip triangulates a counter-clockwise ring of point indices which may
// visit bridge vertices twice.
func earClip(pts []geom.Point, ring []int) [][3]int {
	n := len(ring)
	if n < 3 {
		return nil
	}
	prev := make([]int, n)
	next := make([]int, n)
	for i := range ring {
		prev[i] = (i + n - 1) % n
		next[i] = (i + 1) % n
	}
	at := func(k int) geom.Point { return pts[ring[k]] }

	isEar := func(k int) bool {
		a, b, c := at(prev[k]), at(k), at(next[k])
		if geom.Cross3(a, b, c) <= 0 {
			return false
		}
		box := geom.EmptyRect().Extend(a).Extend(b).Extend(c)
		for j := next[next[k]]; j != prev[k]; j = next[j] {
			p := at(j)
			if p == a || p == b || p == c {
				continue
			}
			if p.X < box.Min.X || p.X > box.Max.X || p.Y < box.Min.Y || p.Y > box.Max.Y {
				continue
			}
			if geom.Cross3(at(prev[j]), p, at(next[j])) > 0 {
				continue // convex vertices cannot sit inside an ear
			}
			if geom.Cross3(a, b, p) >= 0 && geom.Cross3(b, c, p) >= 0 && geom.Cross3(c, a, p) >= 0 {
				return false
			}
		}
		return true
	}

	tris := make([][3]int, 0, n-2)
	remove := func(k int) {
		next[prev[k]] = next[k]
		prev[next[k]] = prev[k]
		n--
	}

	k, stalled := 0, 0
	for n > 3 {
		if isEar(k) {
			tris = append(tris, [3]int{ring[prev[k]], ring[k], ring[next[k]]})
			p := prev[k]
			remove(k)
			k, stalled = p, 0
			continue
		}
		k = next[k]
		if stalled++; stalled < n {
			continue
		}
		// A full pass found no ear: the ring is degenerate around here.
		// Drop a collinear vertex if there is one, otherwise clip the
		// best convex corner regardless of containment.
		k = fallback(pts, ring, prev, next, k, n)
		if geom.Cross3(at(prev[k]), at(k), at(next[k])) > 0 {
			tris = append(tris, [3]int{ring[prev[k]], ring[k], ring[next[k]]})
		}
		p := prev[k]
		remove(k)
		k, stalled = p, 0
	}
	a, b, c := prev[k], k, next[k]
	if geom.Cross3(at(a), at(b), at(c)) > 0 {
		tris = append(tris, [3]int{ring[a], ring[b], ring[c]})
	}
	return tris
}

func fallback(pts []geom.Point, ring, prev, next []int, start, n int) int {
	best, bestCross := start, math.Inf(-1)
	k := start
	for range n {
		c := geom.Cross3(pts[ring[prev[k]]], pts[ring[k]], pts[ring[next[k]]])
		if math.Abs(c) < 1e-12 {
			return k
		}
		if c > bestCross {
			best, bestCross = k, c
		}
		k = next[k]
	}
	return best
}
