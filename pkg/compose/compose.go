// Package compose stacks assembled layers into a board: each layer gets a
// z range derived from the board thickness and a material.
//
// The substrate (edge cuts) spans [0, T]. Top copper sits on the upper face,
// bottom copper hangs below the lower face, and silkscreen sits on the outer
// side of the copper of its side:
//
//	TopSilk       [T+Cu, T+Cu+Sk]
//	TopCopper     [T, T+Cu]
//	EdgeCuts      [0, T]
//	BottomCopper  [-Cu, 0]
//	BottomSilk    [-Cu-Sk, -Cu]
package compose

import (
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

// Default layer thicknesses in mm.
const (
	DefaultThickness       = 1.6
	DefaultCopperThickness = 0.035
	DefaultSilkThickness   = 0.01
)

// Input is one assembled layer.
type Input struct {
	Kind   layer.Kind
	Shapes []geom.Shape
}

// Options configures composition.
type Options struct {
	// Thickness is the substrate thickness T in mm.
	Thickness float64

	CopperThickness float64
	SilkThickness   float64

	// Colors assigns one material per layer kind from Palette. When false
	// every layer uses layer.DefaultMaterial.
	Colors  bool
	Palette layer.Palette
}

// SetDefaults fills zero fields. Thickness is left alone so that a missing
// value is reported by Validate rather than silently replaced.
func (o *Options) SetDefaults() {
	if o.CopperThickness == 0 {
		o.CopperThickness = DefaultCopperThickness
	}
	if o.SilkThickness == 0 {
		o.SilkThickness = DefaultSilkThickness
	}
	if o.Palette == nil {
		o.Palette = layer.DefaultPalette()
	}
}

// Validate checks thicknesses and palette colors.
func (o *Options) Validate() error {
	if err := errors.ValidateThickness(o.Thickness); err != nil {
		return err
	}
	if o.CopperThickness <= 0 || o.SilkThickness <= 0 {
		return errors.New(errors.ErrCodeInvalidInput,
			"copper and silk thickness must be positive, got %v and %v", o.CopperThickness, o.SilkThickness)
	}
	for k, c := range o.Palette {
		if err := c.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "color for %s", k)
		}
	}
	return nil
}

// Layer is a placed layer.
type Layer struct {
	Kind     layer.Kind
	Shapes   []geom.Shape
	ZBase    float64
	ZTop     float64
	Material int // index into Board.Materials
}

// Height returns ZTop - ZBase.
func (l *Layer) Height() float64 { return l.ZTop - l.ZBase }

// Board is the composited stack.
type Board struct {
	Layers    []Layer
	Materials []layer.Material
	Thickness float64

	// Bounds is the footprint of the edge cuts layer.
	Bounds geom.Rect
}

// Layer returns the placed layer of kind k.
func (b *Board) Layer(k layer.Kind) (*Layer, bool) {
	for i := range b.Layers {
		if b.Layers[i].Kind == k {
			return &b.Layers[i], true
		}
	}
	return nil, false
}

// ZRange returns the lowest base and highest top over all layers.
func (b *Board) ZRange() (lo, hi float64) {
	for i, l := range b.Layers {
		if i == 0 || l.ZBase < lo {
			lo = l.ZBase
		}
		if i == 0 || l.ZTop > hi {
			hi = l.ZTop
		}
	}
	return lo, hi
}

// Placement returns the z range of kind k.
func Placement(k layer.Kind, opts Options) (zBase, zTop float64) {
	t, cu, sk := opts.Thickness, opts.CopperThickness, opts.SilkThickness
	switch k {
	case layer.EdgeCuts:
		return 0, t
	case layer.TopCopper:
		return t, t + cu
	case layer.BottomCopper:
		return -cu, 0
	case layer.TopSilk:
		return t + cu, t + cu + sk
	case layer.BottomSilk:
		return -cu - sk, -cu
	}
	return 0, 0
}

// Compose places inputs on the board. Layers are returned in layer.All
// order regardless of input order.
func Compose(inputs []Input, opts Options) (*Board, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	byKind := make(map[layer.Kind]Input, len(inputs))
	for _, in := range inputs {
		if _, dup := byKind[in.Kind]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate %s layer", in.Kind)
		}
		byKind[in.Kind] = in
	}
	edge, ok := byKind[layer.EdgeCuts]
	if !ok || len(edge.Shapes) == 0 {
		return nil, errors.New(errors.ErrCodeMissingEdgeCuts, "no board outline: the edge cuts layer is missing or empty")
	}

	b := &Board{Thickness: opts.Thickness, Bounds: geom.BoundsOf(edge.Shapes)}
	materials := make(map[string]int)
	for _, k := range layer.All {
		in, ok := byKind[k]
		if !ok {
			continue
		}
		m := layer.DefaultMaterial
		if opts.Colors {
			m = opts.Palette.Material(k)
		}
		idx, seen := materials[m.Name]
		if !seen {
			idx = len(b.Materials)
			materials[m.Name] = idx
			b.Materials = append(b.Materials, m)
		}
		zb, zt := Placement(k, opts)
		b.Layers = append(b.Layers, Layer{
			Kind:     k,
			Shapes:   in.Shapes,
			ZBase:    zb,
			ZTop:     zt,
			Material: idx,
		})
	}
	return b, nil
}
