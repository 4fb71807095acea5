// Package preview rasterizes a composited board to a flat PNG, as seen from
// the top or from below.
//
// Layers are filled with golang.org/x/image/vector, so shape outlines are
// anti-aliased and holes (wound opposite to their outer ring) stay clear.
// The bottom view is mirrored horizontally, as if the board were flipped
// over.
package preview

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	"golang.org/x/image/vector"

	"github.com/matzehuels/pcbmesh/pkg/compose"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

const (
	// DefaultScale is the raster resolution in pixels per millimeter.
	DefaultScale = 20.0

	// DefaultPadding is the margin around the board outline in mm.
	DefaultPadding = 2.0

	// MaxDimension caps the width and height of the image. Larger boards
	// are drawn at a reduced scale.
	MaxDimension = 8192
)

// Side selects which face of the board is drawn.
type Side int

const (
	Top Side = iota
	Bottom
)

func (s Side) String() string {
	if s == Bottom {
		return "bottom"
	}
	return "top"
}

// ParseSide parses "top" or "bottom".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "top":
		return Top, nil
	case "bottom":
		return Bottom, nil
	}
	return Top, errors.New(errors.ErrCodeInvalidInput, "unknown side %q (want top or bottom)", s)
}

// Options configures rendering.
type Options struct {
	Side    Side
	Scale   float64 // pixels per mm
	Padding float64 // mm, see DefaultPadding
	Palette layer.Palette

	// Background fills the image before any layer is drawn. Nil leaves it
	// transparent.
	Background color.Color
}

// SetDefaults fills zero fields.
func (o *Options) SetDefaults() {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Padding < 0 {
		o.Padding = 0
	}
	if o.Palette == nil {
		o.Palette = layer.DefaultPalette()
	}
}

// order lists the kinds drawn for a side, bottom-most first.
func order(s Side) []layer.Kind {
	if s == Bottom {
		return []layer.Kind{layer.EdgeCuts, layer.BottomCopper, layer.BottomSilk}
	}
	return []layer.Kind{layer.EdgeCuts, layer.TopCopper, layer.TopSilk}
}

// Render draws the layers of b visible from opts.Side.
func Render(b *compose.Board, opts Options) (*image.RGBA, error) {
	opts.SetDefaults()
	if b == nil || b.Bounds.Empty() {
		return nil, errors.New(errors.ErrCodeMissingEdgeCuts, "board has no outline to draw")
	}

	x0 := b.Bounds.Min.X - opts.Padding
	y1 := b.Bounds.Max.Y + opts.Padding
	wmm := b.Bounds.Width() + 2*opts.Padding
	hmm := b.Bounds.Height() + 2*opts.Padding

	scale := opts.Scale
	if m := math.Max(wmm, hmm) * scale; m > MaxDimension {
		scale *= MaxDimension / m
	}
	w := min(MaxDimension, max(1, int(math.Ceil(wmm*scale))))
	h := min(MaxDimension, max(1, int(math.Ceil(hmm*scale))))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if opts.Background != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	}

	toPix := func(p geom.Point) (float32, float32) {
		x := (p.X - x0) * scale
		if opts.Side == Bottom {
			x = float64(w) - x
		}
		return float32(x), float32((y1 - p.Y) * scale)
	}

	for _, k := range order(opts.Side) {
		l, ok := b.Layer(k)
		if !ok || len(l.Shapes) == 0 {
			continue
		}
		z := vector.NewRasterizer(w, h)
		for _, s := range l.Shapes {
			trace(z, s.Outer, toPix)
			for _, hole := range s.Holes {
				trace(z, hole, toPix)
			}
		}
		src := image.NewUniform(rgba(opts.Palette.Material(k).Color))
		z.Draw(img, img.Bounds(), src, image.Point{})
	}
	return img, nil
}

func trace(z *vector.Rasterizer, ring geom.Polygon, toPix func(geom.Point) (float32, float32)) {
	if len(ring) < 3 {
		return
	}
	z.MoveTo(toPix(ring[0]))
	for _, p := range ring[1:] {
		z.LineTo(toPix(p))
	}
	z.ClosePath()
}

func rgba(c layer.RGB) color.RGBA {
	b := func(v float64) uint8 { return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255)) }
	return color.RGBA{b(c[0]), b(c[1]), b(c[2]), 0xff}
}

// PNG renders b and encodes the image to w.
func PNG(w io.Writer, b *compose.Board, opts Options) error {
	img, err := Render(b, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return errors.Wrap(errors.ErrCodeIOWrite, err, "encode preview").WithFormat("png")
	}
	return nil
}
