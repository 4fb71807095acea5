package geom

import (
	"math"
	"sort"
)

// Polygon is an implicitly closed ring of points. The closing edge runs
// from the last point back to the first; the first point is never repeated.
type Polygon []Point

// Shape is a filled outer ring with zero or more holes.
type Shape struct {
	Outer Polygon
	Holes []Polygon
}

// SignedArea returns the shoelace area of p: positive for counter-clockwise
// rings, negative for clockwise ones.
func (p Polygon) SignedArea() float64 {
	n := len(p)
	if n < 3 {
		return 0
	}
	var a float64
	for i := range n {
		j := (i + 1) % n
		a += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return a / 2
}

// Area returns the absolute area of p.
func (p Polygon) Area() float64 { return math.Abs(p.SignedArea()) }

// IsCCW reports whether p winds counter-clockwise.
func (p Polygon) IsCCW() bool { return p.SignedArea() > 0 }

// Reversed returns a copy of p with the opposite winding.
func (p Polygon) Reversed() Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[len(p)-1-i] = pt
	}
	return out
}

// Oriented returns p wound counter-clockwise when ccw is true and clockwise
// otherwise. p is returned unchanged when it already has that winding.
func (p Polygon) Oriented(ccw bool) Polygon {
	if p.IsCCW() == ccw {
		return p
	}
	return p.Reversed()
}

// Bounds returns the bounding box of p.
func (p Polygon) Bounds() Rect {
	r := EmptyRect()
	for _, pt := range p {
		r = r.Extend(pt)
	}
	return r
}

// Translate returns p shifted by d.
func (p Polygon) Translate(d Point) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = pt.Add(d)
	}
	return out
}

// Clean is Simplify followed by a degeneracy check. The result is empty
// when fewer than three points remain or the ring encloses no net area.
// Rings that may cross themselves should go through Simplify and
// FindCrossing first, since a balanced figure-8 also has zero net area.
func (p Polygon) Clean(s Snapper) Polygon {
	out := p.Simplify(s)
	if out.Degenerate() {
		return out[:0]
	}
	return out
}

// Degenerate reports whether p has fewer than three points or zero area.
func (p Polygon) Degenerate() bool {
	return len(p) < 3 || p.Area() == 0
}

// Simplify snaps p to the grid, then removes consecutive duplicates, the
// closing duplicate and zero-width spikes.
func (p Polygon) Simplify(s Snapper) Polygon {
	out := make(Polygon, 0, len(p))
	for _, pt := range p {
		pt = s.Snap(pt)
		if len(out) > 0 && out[len(out)-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	// A vertex whose neighbours coincide is a spike; drop it together with
	// the duplicated neighbour.
	for changed := true; changed && len(out) >= 3; {
		changed = false
		n := len(out)
		for i := range n {
			if out[(i+n-1)%n] == out[(i+1)%n] {
				out = removeTwo(out, i, (i+1)%n)
				changed = true
				break
			}
		}
	}
	return out
}

func removeTwo(p Polygon, i, j int) Polygon {
	out := make(Polygon, 0, len(p))
	for k, pt := range p {
		if k != i && k != j {
			out = append(out, pt)
		}
	}
	return out
}

// Contains reports whether pt lies strictly inside p using the even-odd
// rule. Points on the boundary may report either way.
func (p Polygon) Contains(pt Point) bool {
	in := false
	n := len(p)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p[i], p[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < x {
				in = !in
			}
		}
	}
	return in
}

// Area returns the filled area of s, outer minus holes.
func (s Shape) Area() float64 {
	a := s.Outer.Area()
	for _, h := range s.Holes {
		a -= h.Area()
	}
	return a
}

// Bounds returns the bounding box of the outer ring.
func (s Shape) Bounds() Rect { return s.Outer.Bounds() }

// Normalized returns s with a counter-clockwise outer and clockwise holes.
func (s Shape) Normalized() Shape {
	out := Shape{Outer: s.Outer.Oriented(true)}
	for _, h := range s.Holes {
		out.Holes = append(out.Holes, h.Oriented(false))
	}
	return out
}

// VertexCount returns the number of ring vertices in s.
func (s Shape) VertexCount() int {
	n := len(s.Outer)
	for _, h := range s.Holes {
		n += len(h)
	}
	return n
}

// BoundsOf returns the combined bounding box of shapes.
func BoundsOf(shapes []Shape) Rect {
	r := EmptyRect()
	for _, s := range shapes {
		r = r.Union(s.Bounds())
	}
	return r
}

// Circle returns a regular n-gon inscribed in the circle of radius r
// centered at c, counter-clockwise, starting on the positive x axis.
func Circle(c Point, r float64, n int) Polygon {
	if n < 3 {
		n = 3
	}
	out := make(Polygon, n)
	for i := range n {
		s, co := math.Sincos(2 * math.Pi * float64(i) / float64(n))
		out[i] = Point{c.X + r*co, c.Y + r*s}
	}
	return out
}

// Box returns the counter-clockwise rectangle of size w by h centered at c.
func Box(c Point, w, h float64) Polygon {
	hw, hh := w/2, h/2
	return Polygon{
		{c.X - hw, c.Y - hh},
		{c.X + hw, c.Y - hh},
		{c.X + hw, c.Y + hh},
		{c.X - hw, c.Y + hh},
	}
}

// ConvexHull returns the counter-clockwise convex hull of pts with
// collinear points removed (Andrew's monotone chain).
func ConvexHull(pts []Point) Polygon {
	if len(pts) < 3 {
		return append(Polygon(nil), pts...)
	}
	ps := append([]Point(nil), pts...)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
	hull := make(Polygon, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && Cross3(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && Cross3(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// IsConvex reports whether every turn of p has the same direction.
// Collinear vertices are ignored.
func (p Polygon) IsConvex() bool {
	n := len(p)
	if n < 3 {
		return false
	}
	dir := 0
	for i := range n {
		s := sign(Cross3(p[i], p[(i+1)%n], p[(i+2)%n]))
		if s == 0 {
			continue
		}
		if dir == 0 {
			dir = s
		} else if s != dir {
			return false
		}
	}
	return dir != 0
}
