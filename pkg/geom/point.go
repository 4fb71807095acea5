// Package geom provides the planar geometry shared by the assembler,
// compositor, mesh builder and preview renderer.
//
// All coordinates are in millimeters. A [Polygon] is a ring whose last
// point implicitly connects back to the first; a [Shape] is one outer ring
// plus the holes cut out of it. Orientation is significant: after
// normalization outers wind counter-clockwise and holes clockwise.
package geom

import "math"

// Point is a position in the board plane, in millimeters.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }
func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }
func (p Point) Cross(q Point) float64 { return p.X*q.Y - p.Y*q.X }
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }
func (p Point) Dist(q Point) float64 { return p.Sub(q).Len() }

func (p Point) Near(q Point, eps float64) bool {
	return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps
}

// Rotate rotates p counter-clockwise about the origin by deg degrees.
func (p Point) Rotate(deg float64) Point {
	if deg == 0 {
		return p
	}
	s, c := math.Sincos(deg * math.Pi / 180)
	return Point{p.X*c - p.Y*s, p.X*s + p.Y*c}
}

// Cross3 returns the z component of (b-a) x (c-a). It is positive when
// a, b, c turn counter-clockwise.
func Cross3(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// Snapper rounds coordinates to a fixed grid of size Eps.
type Snapper struct {
	scale float64
}

// NewSnapper returns a Snapper for the grid eps. The grid is stored as an
// integer reciprocal when eps is a power of ten so 10.0 stays exactly 10.0.
func NewSnapper(eps float64) Snapper {
	if eps <= 0 {
		return Snapper{}
	}
	return Snapper{scale: math.Round(1/eps*1e6) / 1e6}
}

// Snap rounds p to the grid.
func (s Snapper) Snap(p Point) Point {
	if s.scale == 0 {
		return p
	}
	return Point{
		X: math.Round(p.X*s.scale) / s.scale,
		Y: math.Round(p.Y*s.scale) / s.scale,
	}
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	Min, Max Point
}

// EmptyRect returns an inverted rectangle that any Extend call replaces.
func EmptyRect() Rect {
	return Rect{
		Min: Point{math.Inf(1), math.Inf(1)},
		Max: Point{math.Inf(-1), math.Inf(-1)},
	}
}

// Empty reports whether r contains no points.
func (r Rect) Empty() bool { return r.Min.X > r.Max.X || r.Min.Y > r.Max.Y }

// Extend grows r to include p.
func (r Rect) Extend(p Point) Rect {
	r.Min.X = math.Min(r.Min.X, p.X)
	r.Min.Y = math.Min(r.Min.Y, p.Y)
	r.Max.X = math.Max(r.Max.X, p.X)
	r.Max.Y = math.Max(r.Max.Y, p.Y)
	return r
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	if o.Empty() {
		return r
	}
	if r.Empty() {
		return o
	}
	return r.Extend(o.Min).Extend(o.Max)
}

// Overlaps reports whether r and o intersect or touch within eps.
func (r Rect) Overlaps(o Rect, eps float64) bool {
	return r.Min.X <= o.Max.X+eps && o.Min.X <= r.Max.X+eps &&
		r.Min.Y <= o.Max.Y+eps && o.Min.Y <= r.Max.Y+eps
}

// Width returns the extent of r along x.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the extent of r along y.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }
