package assemble

import (
	"math"

	"github.com/matzehuels/pcbmesh/pkg/geom"
	"github.com/matzehuels/pcbmesh/pkg/gerber"
)

// footprint returns the aperture outline centered on the origin as one or
// more counter-clockwise polygons. Aperture holes are not cut out; a flash
// is filled solid.
func (a *assembler) footprint(ap *gerber.Aperture) []geom.Polygon {
	if fp, ok := a.footprints[ap]; ok {
		return fp
	}
	fp := Footprint(ap, a.opts.CircleSegments)
	if ap.Hole > 0 {
		a.warn("hole", "aperture holes are filled solid")
	}
	a.footprints[ap] = fp
	return fp
}

// Footprint returns the outline of ap centered on the origin. Circles are
// approximated with segments vertices.
func Footprint(ap *gerber.Aperture, segments int) []geom.Polygon {
	origin := geom.Pt(0, 0)
	switch ap.Shape {
	case gerber.ShapeCircle:
		if ap.Params[0] == 0 {
			return nil
		}
		return []geom.Polygon{geom.Circle(origin, ap.Params[0]/2, segments)}
	case gerber.ShapeRectangle:
		return []geom.Polygon{geom.Box(origin, ap.Params[0], ap.Params[1])}
	case gerber.ShapeObround:
		return []geom.Polygon{obround(ap.Params[0], ap.Params[1], segments)}
	case gerber.ShapePolygon:
		n := int(ap.Params[1])
		p := geom.Circle(origin, ap.Params[0]/2, n)
		for i := range p {
			p[i] = p[i].Rotate(ap.Params[2])
		}
		return []geom.Polygon{p}
	case gerber.ShapeMacro:
		var out []geom.Polygon
		for _, prim := range ap.Primitives {
			p := prim.Polygon(segments)
			if len(p) >= 3 {
				out = append(out, p.Oriented(true))
			}
		}
		return out
	}
	return nil
}

// obround returns a w by h stadium: a rectangle with semicircular caps on
// its shorter sides.
func obround(w, h float64, segments int) geom.Polygon {
	if w == h {
		return geom.Circle(geom.Pt(0, 0), w/2, segments)
	}
	half := segments / 2
	if half < 2 {
		half = 2
	}
	var out geom.Polygon
	if w > h {
		r, d := h/2, (w-h)/2
		for i := 0; i <= half; i++ {
			ang := -math.Pi/2 + math.Pi*float64(i)/float64(half)
			out = append(out, geom.Pt(d+r*math.Cos(ang), r*math.Sin(ang)))
		}
		for i := 0; i <= half; i++ {
			ang := math.Pi/2 + math.Pi*float64(i)/float64(half)
			out = append(out, geom.Pt(-d+r*math.Cos(ang), r*math.Sin(ang)))
		}
		return out
	}
	r, d := w/2, (h-w)/2
	for i := 0; i <= half; i++ {
		ang := math.Pi * float64(i) / float64(half)
		out = append(out, geom.Pt(r*math.Cos(ang), d+r*math.Sin(ang)))
	}
	for i := 0; i <= half; i++ {
		ang := math.Pi + math.Pi*float64(i)/float64(half)
		out = append(out, geom.Pt(r*math.Cos(ang), -d+r*math.Sin(ang)))
	}
	return out
}

// stroke sweeps each footprint polygon from p to q. A convex polygon
// sweeps to the convex hull of its two placements. A non-convex one sweeps
// to both placements plus the parallelogram traced by each of its edges,
// which the layer union merges.
func stroke(fp []geom.Polygon, p, q geom.Point) []geom.Polygon {
	d := q.Sub(p)
	var out []geom.Polygon
	for _, poly := range fp {
		if poly.IsConvex() {
			pts := make([]geom.Point, 0, 2*len(poly))
			for _, v := range poly {
				pts = append(pts, v.Add(p), v.Add(q))
			}
			if h := geom.ConvexHull(pts); len(h) >= 3 {
				out = append(out, h)
			}
			continue
		}
		out = append(out, poly.Translate(p))
		if d == (geom.Point{}) {
			continue
		}
		out = append(out, poly.Translate(q))
		for i, a := range poly {
			b := poly[(i+1)%len(poly)]
			if b.Sub(a).Cross(d) == 0 {
				continue
			}
			a, b = a.Add(p), b.Add(p)
			out = append(out, geom.Polygon{a, b, b.Add(d), a.Add(d)}.Oriented(true))
		}
	}
	return out
}
