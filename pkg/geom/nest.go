package geom

import "sort"

// Nest organizes unoriented rings into shapes by containment depth. Rings at
// even depth become outers, rings at odd depth become holes of their
// immediate parent. A ring nested inside a hole starts a new solid island.
// The returned shapes are normalized.
func Nest(rings []Polygon) []Shape {
	order := make([]int, len(rings))
	for i := range order {
		order[i] = i
	}
	// Larger rings first: a ring can only be contained by a larger one.
	sort.SliceStable(order, func(a, b int) bool {
		return rings[order[a]].Area() > rings[order[b]].Area()
	})

	parent := make([]int, len(rings))
	depth := make([]int, len(rings))
	bounds := make([]Rect, len(rings))
	for i, r := range rings {
		bounds[i] = r.Bounds()
	}
	for k, i := range order {
		parent[i] = -1
		probe := interiorProbe(rings[i])
		// Smallest enclosing ring is the last matching candidate.
		for _, j := range order[:k] {
			if !bounds[j].Overlaps(bounds[i], 0) {
				continue
			}
			if rings[j].Contains(probe) {
				parent[i] = j
			}
		}
		if parent[i] >= 0 {
			depth[i] = depth[parent[i]] + 1
		}
	}

	shapeOf := make(map[int]int, len(rings))
	var shapes []Shape
	for _, i := range order {
		if depth[i]%2 == 0 {
			shapeOf[i] = len(shapes)
			shapes = append(shapes, Shape{Outer: rings[i].Oriented(true)})
		}
	}
	for _, i := range order {
		if depth[i]%2 == 1 {
			s := shapeOf[parent[i]]
			shapes[s].Holes = append(shapes[s].Holes, rings[i].Oriented(false))
		}
	}
	return shapes
}

// AssignHoles attaches each hole to the smallest outer that contains it.
// Holes that no outer contains are dropped. The returned shapes are
// normalized.
func AssignHoles(outers, holes []Polygon) []Shape {
	shapes := make([]Shape, len(outers))
	bounds := make([]Rect, len(outers))
	areas := make([]float64, len(outers))
	for i, o := range outers {
		shapes[i] = Shape{Outer: o.Oriented(true)}
		bounds[i] = o.Bounds()
		areas[i] = o.Area()
	}
	for _, h := range holes {
		hb := h.Bounds()
		probe := interiorProbe(h)
		best := -1
		for i, o := range outers {
			if !bounds[i].Overlaps(hb, 0) || areas[i] < h.Area() {
				continue
			}
			if o.Contains(probe) && (best < 0 || areas[i] < areas[best]) {
				best = i
			}
		}
		if best >= 0 {
			shapes[best].Holes = append(shapes[best].Holes, h.Oriented(false))
		}
	}
	return shapes
}

// interiorProbe returns a point just inside ring r near its first edge, so
// containment tests are not confused by rings that share a vertex.
func interiorProbe(r Polygon) Point {
	if len(r) < 3 {
		if len(r) == 0 {
			return Point{}
		}
		return r[0]
	}
	a, b := r[0], r[1]
	mid := a.Add(b).Scale(0.5)
	d := b.Sub(a)
	l := d.Len()
	if l == 0 {
		return mid
	}
	// Left normal points inward on a counter-clockwise ring.
	nrm := Point{-d.Y / l, d.X / l}
	if !r.IsCCW() {
		nrm = nrm.Scale(-1)
	}
	step := l * 1e-3
	if step > 1e-3 {
		step = 1e-3
	}
	return mid.Add(nrm.Scale(step))
}
