package geom

import (
	"math"
	"testing"
)

func square(x, y, size float64) Polygon {
	return Polygon{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}}
}

func TestSignedArea(t *testing.T) {
	tests := []struct {
		name string
		p    Polygon
		want float64
	}{
		{"ccw square", square(0, 0, 2), 4},
		{"cw square", square(0, 0, 2).Reversed(), -4},
		{"triangle", Polygon{{0, 0}, {4, 0}, {0, 3}}, 6},
		{"degenerate", Polygon{{0, 0}, {1, 1}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.SignedArea(); got != tt.want {
				t.Errorf("SignedArea() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapper(t *testing.T) {
	s := NewSnapper(1e-4)
	tests := []struct {
		in, want Point
	}{
		{Pt(10, 10), Pt(10, 10)},
		{Pt(100.00004, 49.99996), Pt(100, 50)},
		{Pt(0.12346, -0.12346), Pt(0.1235, -0.1235)},
	}
	for _, tt := range tests {
		got := s.Snap(tt.in)
		if !got.Near(tt.want, 1e-12) {
			t.Errorf("Snap(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := s.Snap(Pt(10, 1.6)); got.X != 10 {
		t.Errorf("Snap kept 10 as %v", got.X)
	}
}

func TestClean(t *testing.T) {
	s := NewSnapper(1e-4)

	t.Run("closing duplicate", func(t *testing.T) {
		p := Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
		if got := p.Clean(s); len(got) != 4 {
			t.Errorf("len = %d, want 4", len(got))
		}
	})

	t.Run("near duplicates collapse", func(t *testing.T) {
		p := Polygon{{0, 0}, {1, 0}, {1.00001, 0}, {1, 1}, {0, 1}}
		if got := p.Clean(s); len(got) != 4 {
			t.Errorf("len = %d, want 4", len(got))
		}
	})

	t.Run("spike removed", func(t *testing.T) {
		p := Polygon{{0, 0}, {2, 0}, {3, 0}, {2, 0}, {2, 2}, {0, 2}}
		got := p.Clean(s)
		if len(got) != 4 {
			t.Errorf("len = %d, want 4: %v", len(got), got)
		}
	})

	t.Run("degenerate", func(t *testing.T) {
		p := Polygon{{0, 0}, {1, 1}, {0, 0}}
		if got := p.Clean(s); len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
	})

	t.Run("collinear ring has no area", func(t *testing.T) {
		p := Polygon{{0, 0}, {1, 0}, {2, 0}}
		if got := p.Clean(s); len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
	})
}

func TestSimplifyKeepsFigureEight(t *testing.T) {
	s := NewSnapper(1e-4)
	p := Polygon{{0, 0}, {2, 2}, {2, 0}, {0, 2}, {0, 0}}

	if got := p.Clean(s); len(got) != 0 {
		t.Errorf("Clean() = %v, want empty for zero net area", got)
	}
	got := p.Simplify(s)
	if len(got) != 4 {
		t.Fatalf("Simplify() = %v, want 4 points", got)
	}
	c, crossed := got.FindCrossing()
	if !crossed {
		t.Fatal("FindCrossing() missed the figure-eight")
	}
	if c.At.Dist(Pt(1, 1)) > 1e-9 {
		t.Errorf("crossing at %v, want (1, 1)", c.At)
	}
	if !got.Degenerate() {
		t.Error("Degenerate() = false for zero net area")
	}
}

func TestIsConvex(t *testing.T) {
	tests := []struct {
		name string
		p    Polygon
		want bool
	}{
		{"square", square(0, 0, 2), true},
		{"clockwise square", square(0, 0, 2).Reversed(), true},
		{"collinear vertex", Polygon{{0, 0}, {1, 0}, {2, 0}, {2, 2}, {0, 2}}, true},
		{"L shape", Polygon{{0, 0}, {2, 0}, {2, 1}, {1, 1}, {1, 2}, {0, 2}}, false},
		{"flat", Polygon{{0, 0}, {1, 0}, {2, 0}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsConvex(); got != tt.want {
				t.Errorf("IsConvex() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	p := square(0, 0, 10)
	if !p.Contains(Pt(5, 5)) {
		t.Error("center not contained")
	}
	if p.Contains(Pt(15, 5)) {
		t.Error("outside point contained")
	}
	if !p.Reversed().Contains(Pt(1, 9)) {
		t.Error("containment depends on winding")
	}
}

func TestConvexHull(t *testing.T) {
	pts := []Point{{0, 0}, {2, 0}, {1, 1}, {2, 2}, {0, 2}, {1, 0}}
	h := ConvexHull(pts)
	if len(h) != 4 {
		t.Fatalf("hull has %d points, want 4: %v", len(h), h)
	}
	if !h.IsCCW() {
		t.Error("hull is not counter-clockwise")
	}
	if h.Area() != 4 {
		t.Errorf("hull area = %v, want 4", h.Area())
	}
}

func TestCircle(t *testing.T) {
	c := Circle(Pt(1, 1), 2, 32)
	if len(c) != 32 || !c.IsCCW() {
		t.Fatalf("Circle: len=%d ccw=%v", len(c), c.IsCCW())
	}
	want := 0.5 * 32 * 4 * math.Sin(2*math.Pi/32)
	if math.Abs(c.Area()-want) > 1e-9 {
		t.Errorf("area = %v, want %v", c.Area(), want)
	}
	b := c.Bounds()
	if !b.Max.Near(Pt(3, 3), 1e-9) || !b.Min.Near(Pt(-1, -1), 1e-9) {
		t.Errorf("bounds = %v", b)
	}
}

func TestFindCrossing(t *testing.T) {
	tests := []struct {
		name    string
		p       Polygon
		crossed bool
	}{
		{"square", square(0, 0, 1), false},
		{"bowtie", Polygon{{0, 0}, {2, 2}, {2, 0}, {0, 2}}, true},
		{"concave", Polygon{{0, 0}, {4, 0}, {4, 4}, {2, 1}, {0, 4}}, false},
		{"touching vertex", Polygon{{0, 0}, {4, 0}, {2, 2}, {4, 4}, {0, 4}, {2, 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, got := tt.p.FindCrossing()
			if got != tt.crossed {
				t.Errorf("FindCrossing() = %v (%+v), want %v", got, c, tt.crossed)
			}
			if got && !c.At.Near(Pt(1, 1), 1e-9) {
				t.Errorf("crossing at %v, want (1,1)", c.At)
			}
		})
	}
}

func TestNest(t *testing.T) {
	outer := square(0, 0, 10)
	hole := square(2, 2, 6)
	island := square(4, 4, 2)
	other := square(20, 0, 5)

	shapes := Nest([]Polygon{hole, other, island, outer})
	if len(shapes) != 3 {
		t.Fatalf("got %d shapes, want 3", len(shapes))
	}
	var withHole int
	for _, s := range shapes {
		if !s.Outer.IsCCW() {
			t.Error("outer not counter-clockwise")
		}
		for _, h := range s.Holes {
			if h.IsCCW() {
				t.Error("hole not clockwise")
			}
		}
		if len(s.Holes) == 1 {
			withHole++
			if s.Area() != 100-36 {
				t.Errorf("area = %v, want 64", s.Area())
			}
		}
	}
	if withHole != 1 {
		t.Errorf("%d shapes with a hole, want 1", withHole)
	}
}

func TestAssignHoles(t *testing.T) {
	outers := []Polygon{square(0, 0, 10), square(2, 2, 6)}
	holes := []Polygon{square(3, 3, 1).Reversed(), square(50, 50, 1).Reversed()}
	shapes := AssignHoles(outers, holes)
	if len(shapes) != 2 {
		t.Fatalf("got %d shapes", len(shapes))
	}
	if len(shapes[0].Holes) != 0 || len(shapes[1].Holes) != 1 {
		t.Errorf("holes not assigned to smallest container: %d, %d",
			len(shapes[0].Holes), len(shapes[1].Holes))
	}
}
