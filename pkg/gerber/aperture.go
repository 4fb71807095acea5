package gerber

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/pcbmesh/pkg/errors"
)

// Shape is the template an aperture is instantiated from.
type Shape uint8

const (
	ShapeCircle Shape = iota
	ShapeRectangle
	ShapeObround
	ShapePolygon
	ShapeMacro
)

func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "circle"
	case ShapeRectangle:
		return "rectangle"
	case ShapeObround:
		return "obround"
	case ShapePolygon:
		return "polygon"
	case ShapeMacro:
		return "macro"
	}
	return fmt.Sprintf("shape(%d)", s)
}

// Aperture is a defined aperture. Lengths are in millimeters.
//
// Params by shape:
//   - circle: [diameter]
//   - rectangle, obround: [width, height]
//   - polygon: [outer diameter, vertex count, rotation in degrees]
//   - macro: the raw AD parameters, unscaled
type Aperture struct {
	ID     int
	Shape  Shape
	Params []float64

	// Hole is the diameter of the optional center hole, 0 when absent.
	Hole float64

	// Macro is the template name and Primitives its instantiation, in mm,
	// for ShapeMacro.
	Macro      string
	Primitives []Primitive
}

func (a *Aperture) String() string {
	if a == nil {
		return "<nil>"
	}
	name := a.Shape.String()
	if a.Shape == ShapeMacro {
		name = a.Macro
	}
	parts := make([]string, len(a.Params))
	for i, p := range a.Params {
		parts[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return fmt.Sprintf("D%d %s(%s)", a.ID, name, strings.Join(parts, ","))
}

// Extent returns the width and height of the aperture's bounding box.
func (a *Aperture) Extent() (w, h float64) {
	switch a.Shape {
	case ShapeCircle, ShapePolygon:
		return a.Params[0], a.Params[0]
	case ShapeRectangle, ShapeObround:
		return a.Params[0], a.Params[1]
	}
	var minX, minY, maxX, maxY float64
	for i, p := range a.Primitives {
		x0, y0, x1, y1 := p.bounds()
		if i == 0 || x0 < minX {
			minX = x0
		}
		if i == 0 || y0 < minY {
			minY = y0
		}
		if i == 0 || x1 > maxX {
			maxX = x1
		}
		if i == 0 || y1 > maxY {
			maxY = y1
		}
	}
	return maxX - minX, maxY - minY
}

// newStandardAperture builds a C, R, O or P aperture from its raw
// parameters, converting lengths with scale.
func newStandardAperture(id int, template string, params []float64, scale float64) (*Aperture, error) {
	a := &Aperture{ID: id}
	need := 1
	switch template {
	case "C":
		a.Shape = ShapeCircle
	case "R":
		a.Shape, need = ShapeRectangle, 2
	case "O":
		a.Shape, need = ShapeObround, 2
	case "P":
		a.Shape, need = ShapePolygon, 2
	default:
		return nil, errors.New(errors.ErrCodeUnsupportedAperture, "unknown aperture template %q", template)
	}
	if len(params) < need {
		return nil, errors.New(errors.ErrCodeMalformedCommand,
			"aperture D%d: %s needs %d parameters, got %d", id, a.Shape, need, len(params))
	}
	for _, p := range params {
		if p < 0 && a.Shape != ShapePolygon {
			return nil, errors.New(errors.ErrCodeMalformedCommand, "aperture D%d: negative size", id)
		}
	}

	switch a.Shape {
	case ShapeCircle:
		a.Params = []float64{params[0] * scale}
		if len(params) > 1 {
			a.Hole = params[1] * scale
		}
	case ShapeRectangle, ShapeObround:
		a.Params = []float64{params[0] * scale, params[1] * scale}
		if len(params) > 2 {
			a.Hole = params[2] * scale
		}
	case ShapePolygon:
		n := params[1]
		if n != float64(int(n)) || n < 3 || n > 12 {
			return nil, errors.New(errors.ErrCodeMalformedCommand,
				"aperture D%d: polygon vertex count must be 3..12, got %v", id, n)
		}
		if params[0] < 0 {
			return nil, errors.New(errors.ErrCodeMalformedCommand, "aperture D%d: negative size", id)
		}
		rot := 0.0
		if len(params) > 2 {
			rot = params[2]
		}
		a.Params = []float64{params[0] * scale, n, rot}
		if len(params) > 3 {
			a.Hole = params[3] * scale
		}
	}
	return a, nil
}
