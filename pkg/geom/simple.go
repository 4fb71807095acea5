package geom

import "sort"

// Crossing identifies two edges of a ring that properly cross. Edge i runs
// from vertex i to vertex i+1 (mod n).
type Crossing struct {
	I, J int
	At   Point
}

// FindCrossing returns the first pair of non-adjacent edges of p that cross
// at a single interior point, or false when p is simple. Touching and
// collinear overlaps are not reported.
//
// Edges are swept in order of their minimum x so typical rings stay far
// below the quadratic worst case.
func (p Polygon) FindCrossing() (Crossing, bool) {
	n := len(p)
	if n < 4 {
		return Crossing{}, false
	}
	type edge struct {
		i          int
		minX, maxX float64
	}
	edges := make([]edge, n)
	for i := range n {
		a, b := p[i], p[(i+1)%n]
		lo, hi := a.X, b.X
		if lo > hi {
			lo, hi = hi, lo
		}
		edges[i] = edge{i, lo, hi}
	}
	sort.Slice(edges, func(a, b int) bool { return edges[a].minX < edges[b].minX })

	active := make([]edge, 0, 16)
	for _, e := range edges {
		keep := active[:0]
		for _, o := range active {
			if o.maxX >= e.minX {
				keep = append(keep, o)
			}
		}
		active = keep
		for _, o := range active {
			if adjacent(e.i, o.i, n) {
				continue
			}
			a1, a2 := p[e.i], p[(e.i+1)%n]
			b1, b2 := p[o.i], p[(o.i+1)%n]
			if at, ok := properIntersection(a1, a2, b1, b2); ok {
				i, j := e.i, o.i
				if i > j {
					i, j = j, i
				}
				return Crossing{I: i, J: j, At: at}, true
			}
		}
		active = append(active, e)
	}
	return Crossing{}, false
}

// IsSimple reports whether p has no properly crossing edges.
func (p Polygon) IsSimple() bool {
	_, crossed := p.FindCrossing()
	return !crossed
}

func adjacent(i, j, n int) bool {
	return i == j || (i+1)%n == j || (j+1)%n == i
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// properIntersection reports whether segments a1a2 and b1b2 cross at a
// single point interior to both.
func properIntersection(a1, a2, b1, b2 Point) (Point, bool) {
	d1 := sign(Cross3(a1, a2, b1))
	d2 := sign(Cross3(a1, a2, b2))
	d3 := sign(Cross3(b1, b2, a1))
	d4 := sign(Cross3(b1, b2, a2))
	if d1 == 0 || d2 == 0 || d3 == 0 || d4 == 0 || d1 == d2 || d3 == d4 {
		return Point{}, false
	}
	r := a2.Sub(a1)
	s := b2.Sub(b1)
	t := b1.Sub(a1).Cross(s) / r.Cross(s)
	return a1.Add(r.Scale(t)), true
}
