// Package assemble turns a layer's Gerber command stream into closed,
// simple polygons.
//
// In [ModeFill] (copper and silkscreen) every draw is stroked with the
// current aperture, every flash stamps the aperture footprint and every
// region contributes its contours; the resulting fills are snapped to an
// epsilon grid and unioned. In [ModeOutline] (edge cuts) the center lines
// of the draws are chained into closed contours and nested by containment,
// so a board outline with cutouts becomes one shape with holes.
package assemble

import (
	"fmt"
	"io"
	"iter"
	"math"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
	"github.com/matzehuels/pcbmesh/pkg/gerber"
)

// Mode selects how draws are interpreted.
type Mode uint8

const (
	ModeFill Mode = iota
	ModeOutline
)

func (m Mode) String() string {
	if m == ModeOutline {
		return "outline"
	}
	return "fill"
}

// Default tuning values.
const (
	DefaultEpsilon        = 1e-4
	DefaultArcSegments    = 64
	DefaultCircleSegments = 32
	DefaultMaxUnionShapes = 50000
)

// Options configures assembly.
type Options struct {
	Mode Mode

	// Epsilon is the snapping grid and the endpoint tolerance for chaining
	// outline segments, in mm.
	Epsilon float64

	// ArcSegments is the number of chords a full circle is flattened into.
	ArcSegments int

	// CircleSegments is the vertex count of circular aperture footprints.
	CircleSegments int

	// MaxUnionShapes bounds the size of one group of overlapping fills.
	MaxUnionShapes int

	// Layer names the layer in errors and log lines.
	Layer string

	Logger *log.Logger
}

// SetDefaults fills zero fields with their defaults.
func (o *Options) SetDefaults() {
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.ArcSegments <= 0 {
		o.ArcSegments = DefaultArcSegments
	}
	if o.CircleSegments < 3 {
		o.CircleSegments = DefaultCircleSegments
	}
	if o.MaxUnionShapes <= 0 {
		o.MaxUnionShapes = DefaultMaxUnionShapes
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Stats counts what assembly consumed and produced.
type Stats struct {
	Draws        int `json:"draws" yaml:"draws"`
	Arcs         int `json:"arcs" yaml:"arcs"`
	Flashes      int `json:"flashes" yaml:"flashes"`
	Regions      int `json:"regions" yaml:"regions"`
	ClearSkipped int `json:"clear_skipped" yaml:"clear_skipped"`
	Degenerate   int `json:"degenerate" yaml:"degenerate"`
	OpenChains   int `json:"open_chains" yaml:"open_chains"`
	Polygons     int `json:"polygons" yaml:"polygons"`
	Holes        int `json:"holes" yaml:"holes"`
}

// Result is an assembled layer.
type Result struct {
	Shapes   []geom.Shape
	Bounds   geom.Rect
	Stats    Stats
	Warnings []string
}

// AssembleCommands assembles an already materialized command list.
func AssembleCommands(cmds []gerber.Command, opts Options) (*Result, error) {
	return Assemble(func(yield func(gerber.Command, error) bool) {
		for _, c := range cmds {
			if !yield(c, nil) {
				return
			}
		}
	}, opts)
}

// Assemble consumes a command sequence and returns the layer's shapes. The
// first error in the sequence aborts assembly and is returned unchanged.
func Assemble(cmds iter.Seq2[gerber.Command, error], opts Options) (*Result, error) {
	opts.SetDefaults()
	a := newAssembler(opts)
	for cmd, err := range cmds {
		if err != nil {
			return nil, err
		}
		if err := a.apply(cmd); err != nil {
			return nil, a.wrap(err)
		}
		if cmd.Kind == gerber.KindEndOfFile {
			break
		}
	}
	if a.inRegion {
		return nil, a.wrap(errors.New(errors.ErrCodeUnclosedRegion,
			"region opened at line %d is never closed", a.regionLine).At(a.regionLine, a.regionOffset))
	}
	res, err := a.finish()
	if err != nil {
		return nil, a.wrap(err)
	}
	return res, nil
}

type assembler struct {
	opts Options
	snap geom.Snapper

	apertures  map[int]*gerber.Aperture
	currentID  int
	footprints map[*gerber.Aperture][]geom.Polygon
	polarity   gerber.Polarity

	inRegion     bool
	regionLine   int
	regionOffset int64
	contour      geom.Polygon
	contours     []geom.Polygon

	fills    []geom.Polygon // ModeFill
	paths    []geom.Polygon // ModeOutline open polylines
	rings    []geom.Polygon // ModeOutline closed contours from regions
	warnOnce map[string]bool

	res Result
}

func newAssembler(opts Options) *assembler {
	return &assembler{
		opts:       opts,
		snap:       geom.NewSnapper(opts.Epsilon),
		apertures:  make(map[int]*gerber.Aperture),
		footprints: make(map[*gerber.Aperture][]geom.Polygon),
		warnOnce:   make(map[string]bool),
	}
}

func (a *assembler) wrap(err error) error {
	if e, ok := errors.As(err); ok && e.Layer == "" && a.opts.Layer != "" {
		e.WithLayer(a.opts.Layer)
	}
	return err
}

func (a *assembler) warn(key, format string, args ...any) {
	if key != "" {
		if a.warnOnce[key] {
			return
		}
		a.warnOnce[key] = true
	}
	msg := fmt.Sprintf(format, args...)
	a.res.Warnings = append(a.res.Warnings, msg)
	a.opts.Logger.Warn("assemble: "+msg, "layer", a.opts.Layer)
}

func (a *assembler) apply(c gerber.Command) error {
	switch c.Kind {
	case gerber.KindApertureDefinition:
		a.apertures[c.Aperture.ID] = c.Aperture
	case gerber.KindSetAperture:
		a.currentID = c.ID
	case gerber.KindPolarity:
		a.polarity = c.Polarity
	case gerber.KindRegionStart:
		if a.inRegion {
			return errors.New(errors.ErrCodeUnclosedRegion,
				"region started while the region from line %d is still open", a.regionLine).At(c.Line, c.Offset)
		}
		a.inRegion = true
		a.regionLine, a.regionOffset = c.Line, c.Offset
		a.contour, a.contours = nil, nil
	case gerber.KindRegionEnd:
		if !a.inRegion {
			return errors.New(errors.ErrCodeUnclosedRegion, "region end without a region start").At(c.Line, c.Offset)
		}
		a.closeContour()
		a.inRegion = false
		a.res.Stats.Regions++
		return a.emitRegion()
	case gerber.KindMove:
		if a.inRegion {
			a.closeContour()
			a.contour = geom.Polygon{c.Point}
		}
	case gerber.KindDraw:
		return a.draw(c)
	case gerber.KindFlash:
		return a.flash(c)
	}
	return nil
}

func (a *assembler) aperture(c gerber.Command) (*gerber.Aperture, error) {
	if a.currentID == 0 {
		return nil, errors.New(errors.ErrCodeDanglingAperture,
			"%s with no aperture selected", c.Kind).At(c.Line, c.Offset)
	}
	ap, ok := a.apertures[a.currentID]
	if !ok {
		return nil, errors.New(errors.ErrCodeDanglingAperture,
			"%s uses undefined aperture D%d", c.Kind, a.currentID).At(c.Line, c.Offset)
	}
	return ap, nil
}

func (a *assembler) draw(c gerber.Command) error {
	path := []geom.Point{c.From, c.Point}
	if c.Interp.IsArc() {
		a.res.Stats.Arcs++
		path = a.arc(c)
	} else {
		a.res.Stats.Draws++
	}

	if a.inRegion {
		if len(a.contour) == 0 {
			a.contour = geom.Polygon{c.From}
		}
		a.contour = append(a.contour, path[1:]...)
		return nil
	}

	ap, err := a.aperture(c)
	if err != nil {
		return err
	}
	if a.polarity == gerber.Clear {
		a.res.Stats.ClearSkipped++
		a.warn("clear", "clear polarity objects are not subtracted and were skipped")
		return nil
	}
	if a.opts.Mode == ModeOutline {
		a.paths = append(a.paths, path)
		return nil
	}
	fp := a.footprint(ap)
	for i := 1; i < len(path); i++ {
		a.fills = append(a.fills, stroke(fp, path[i-1], path[i])...)
	}
	return nil
}

func (a *assembler) flash(c gerber.Command) error {
	a.res.Stats.Flashes++
	if a.inRegion {
		a.warn("", "flash at line %d inside a region ignored", c.Line)
		return nil
	}
	ap, err := a.aperture(c)
	if err != nil {
		return err
	}
	if a.polarity == gerber.Clear {
		a.res.Stats.ClearSkipped++
		a.warn("clear", "clear polarity objects are not subtracted and were skipped")
		return nil
	}
	if a.opts.Mode == ModeOutline {
		a.warn("outline-flash", "flashes on an outline layer are ignored")
		return nil
	}
	for _, p := range a.footprint(ap) {
		a.fills = append(a.fills, p.Translate(c.Point))
	}
	return nil
}

func (a *assembler) closeContour() {
	if len(a.contour) >= 2 {
		a.contours = append(a.contours, a.contour)
	}
	a.contour = nil
}

func (a *assembler) emitRegion() error {
	for _, ct := range a.contours {
		ring := ct.Simplify(a.snap)
		if x, bad := ring.FindCrossing(); bad {
			return errors.New(errors.ErrCodeSelfIntersection,
				"region contour crosses itself at (%.4f, %.4f)", x.At.X, x.At.Y).At(a.regionLine, a.regionOffset)
		}
		if ring.Degenerate() {
			a.res.Stats.Degenerate++
			a.warn("", "degenerate region contour at line %d dropped", a.regionLine)
			continue
		}
		if a.polarity == gerber.Clear {
			a.res.Stats.ClearSkipped++
			a.warn("clear", "clear polarity objects are not subtracted and were skipped")
			continue
		}
		if a.opts.Mode == ModeOutline {
			a.rings = append(a.rings, ring)
		} else {
			a.fills = append(a.fills, ring.Oriented(true))
		}
	}
	a.contours = nil
	return nil
}

// arc flattens a circular draw into chords, start and end included.
func (a *assembler) arc(c gerber.Command) []geom.Point {
	center := c.From.Add(c.Center)
	if c.Quadrant == gerber.SingleQuadrant {
		center = singleQuadrantCenter(c)
	}
	r0 := c.From.Dist(center)
	r1 := c.Point.Dist(center)
	if r0 == 0 || r1 == 0 {
		return []geom.Point{c.From, c.Point}
	}
	a0 := math.Atan2(c.From.Y-center.Y, c.From.X-center.X)
	a1 := math.Atan2(c.Point.Y-center.Y, c.Point.X-center.X)
	sweep := a1 - a0
	closed := c.From.Near(c.Point, a.opts.Epsilon)
	if c.Interp == gerber.CounterClockwise {
		if sweep <= 0 || (closed && c.Quadrant == gerber.MultiQuadrant) {
			sweep += 2 * math.Pi
		}
	} else {
		if sweep >= 0 || (closed && c.Quadrant == gerber.MultiQuadrant) {
			sweep -= 2 * math.Pi
		}
	}
	if closed && c.Quadrant == gerber.SingleQuadrant {
		return []geom.Point{c.From, c.Point}
	}
	n := int(math.Ceil(math.Abs(sweep) / (2 * math.Pi) * float64(a.opts.ArcSegments)))
	if n < 1 {
		n = 1
	}
	pts := make([]geom.Point, 0, n+1)
	pts = append(pts, c.From)
	for i := 1; i < n; i++ {
		t := float64(i) / float64(n)
		ang := a0 + sweep*t
		r := r0 + (r1-r0)*t
		pts = append(pts, geom.Pt(center.X+r*math.Cos(ang), center.Y+r*math.Sin(ang)))
	}
	return append(pts, c.Point)
}

// singleQuadrantCenter resolves the unsigned I/J offsets of a G74 arc to
// the candidate center that best fits a sweep of at most 90 degrees.
func singleQuadrantCenter(c gerber.Command) geom.Point {
	i, j := math.Abs(c.Center.X), math.Abs(c.Center.Y)
	best := c.From.Add(geom.Pt(i, j))
	bestErr := math.Inf(1)
	for _, s := range [][2]float64{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}} {
		ctr := c.From.Add(geom.Pt(s[0]*i, s[1]*j))
		a0 := math.Atan2(c.From.Y-ctr.Y, c.From.X-ctr.X)
		a1 := math.Atan2(c.Point.Y-ctr.Y, c.Point.X-ctr.X)
		sweep := a1 - a0
		if c.Interp == gerber.CounterClockwise {
			for sweep < 0 {
				sweep += 2 * math.Pi
			}
		} else {
			for sweep > 0 {
				sweep -= 2 * math.Pi
			}
		}
		if math.Abs(sweep) > math.Pi/2+1e-9 {
			continue
		}
		if e := math.Abs(c.From.Dist(ctr) - c.Point.Dist(ctr)); e < bestErr {
			best, bestErr = ctr, e
		}
	}
	return best
}

func (a *assembler) finish() (*Result, error) {
	var shapes []geom.Shape
	var err error
	if a.opts.Mode == ModeOutline {
		shapes, err = a.outline()
	} else {
		shapes, err = a.union(a.fills)
	}
	if err != nil {
		return nil, err
	}
	a.res.Shapes = shapes
	a.res.Bounds = geom.BoundsOf(shapes)
	a.res.Stats.Polygons = len(shapes)
	for _, s := range shapes {
		a.res.Stats.Holes += len(s.Holes)
	}
	res := a.res
	return &res, nil
}
