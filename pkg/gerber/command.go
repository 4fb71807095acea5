package gerber

import (
	"fmt"

	"github.com/matzehuels/pcbmesh/pkg/geom"
)

// Kind identifies the variant of a [Command].
type Kind uint8

const (
	KindApertureDefinition Kind = iota
	KindSetAperture
	KindMove
	KindDraw
	KindFlash
	KindRegionStart
	KindRegionEnd
	KindSetUnits
	KindSetFormat
	KindPolarity
	KindEndOfFile
)

var kindNames = [...]string{
	KindApertureDefinition: "aperture_definition",
	KindSetAperture:        "set_aperture",
	KindMove:               "move",
	KindDraw:               "draw",
	KindFlash:              "flash",
	KindRegionStart:        "region_start",
	KindRegionEnd:          "region_end",
	KindSetUnits:           "set_units",
	KindSetFormat:          "set_format",
	KindPolarity:           "polarity",
	KindEndOfFile:          "end_of_file",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Kinds lists every command kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Units is the measurement unit declared by MO or G70/G71.
type Units uint8

const (
	UnitsMM Units = iota
	UnitsInch
)

func (u Units) String() string {
	if u == UnitsInch {
		return "inch"
	}
	return "mm"
}

// ToMM returns the factor converting a length in u to millimeters.
func (u Units) ToMM() float64 {
	if u == UnitsInch {
		return 25.4
	}
	return 1
}

// Interpolation is the plot mode set by G01, G02 and G03.
type Interpolation uint8

const (
	Linear Interpolation = iota
	Clockwise
	CounterClockwise
)

func (i Interpolation) String() string {
	switch i {
	case Clockwise:
		return "cw"
	case CounterClockwise:
		return "ccw"
	}
	return "linear"
}

// IsArc reports whether i is a circular interpolation mode.
func (i Interpolation) IsArc() bool { return i != Linear }

// QuadrantMode is the arc mode set by G74 and G75.
type QuadrantMode uint8

const (
	MultiQuadrant QuadrantMode = iota
	SingleQuadrant
)

func (q QuadrantMode) String() string {
	if q == SingleQuadrant {
		return "single"
	}
	return "multi"
}

// Polarity is the object polarity set by LP.
type Polarity uint8

const (
	Dark Polarity = iota
	Clear
)

func (p Polarity) String() string {
	if p == Clear {
		return "clear"
	}
	return "dark"
}

// ZeroOmission selects which zeros a fixed-point coordinate may omit.
type ZeroOmission uint8

const (
	OmitLeading ZeroOmission = iota
	OmitTrailing
)

// Notation selects absolute or incremental coordinates.
type Notation uint8

const (
	Absolute Notation = iota
	Incremental
)

// Format is the coordinate format declared by FS.
type Format struct {
	Integer  int
	Decimal  int
	Zeros    ZeroOmission
	Notation Notation
}

// DefaultFormat applies until the first FS block.
var DefaultFormat = Format{Integer: 2, Decimal: 4}

func (f Format) String() string {
	z := "L"
	if f.Zeros == OmitTrailing {
		z = "T"
	}
	n := "A"
	if f.Notation == Incremental {
		n = "I"
	}
	return fmt.Sprintf("%s%s %d.%d", z, n, f.Integer, f.Decimal)
}

// Command is one parsed Gerber operation. Kind selects which of the payload
// fields are meaningful; the others hold their zero value.
type Command struct {
	Kind   Kind
	Line   int   // 1-based source line of the word
	Offset int64 // byte offset of the word

	// KindApertureDefinition
	Aperture *Aperture

	// KindSetAperture
	ID int

	// KindMove, KindDraw, KindFlash: absolute target point in mm.
	Point geom.Point

	// KindDraw
	From     geom.Point // start point
	Center   geom.Point // I/J offset from From, arcs only
	Interp   Interpolation
	Quadrant QuadrantMode

	// KindSetUnits
	Units Units

	// KindSetFormat
	Format Format

	// KindPolarity
	Polarity Polarity
}

func (c Command) String() string {
	switch c.Kind {
	case KindApertureDefinition:
		return fmt.Sprintf("AD %s", c.Aperture)
	case KindSetAperture:
		return fmt.Sprintf("D%d", c.ID)
	case KindMove:
		return fmt.Sprintf("move %g,%g", c.Point.X, c.Point.Y)
	case KindDraw:
		if c.Interp.IsArc() {
			return fmt.Sprintf("arc(%s) %g,%g -> %g,%g center +%g,%g",
				c.Interp, c.From.X, c.From.Y, c.Point.X, c.Point.Y, c.Center.X, c.Center.Y)
		}
		return fmt.Sprintf("draw %g,%g -> %g,%g", c.From.X, c.From.Y, c.Point.X, c.Point.Y)
	case KindFlash:
		return fmt.Sprintf("flash %g,%g", c.Point.X, c.Point.Y)
	case KindSetUnits:
		return "units " + c.Units.String()
	case KindSetFormat:
		return "format " + c.Format.String()
	case KindPolarity:
		return "polarity " + c.Polarity.String()
	}
	return c.Kind.String()
}
