package layer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/pcbmesh/pkg/errors"
)

// RGB is a linear color with components in [0, 1].
type RGB [3]float64

// Validate reports components outside [0, 1].
func (c RGB) Validate() error {
	for _, v := range c {
		if v < 0 || v > 1 {
			return errors.New(errors.ErrCodeInvalidInput, "color component %v outside [0, 1]", v)
		}
	}
	return nil
}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	b := func(v float64) int { return int(v*255 + 0.5) }
	return fmt.Sprintf("#%02x%02x%02x", b(c[0]), b(c[1]), b(c[2]))
}

// ParseRGB parses a #rrggbb (or rrggbb) hex color.
func ParseRGB(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return RGB{}, errors.New(errors.ErrCodeInvalidInput, "color %q is not #rrggbb", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "color %q is not #rrggbb", s)
	}
	return RGB{
		float64(v>>16&0xff) / 255,
		float64(v>>8&0xff) / 255,
		float64(v&0xff) / 255,
	}, nil
}

// Material is the surface assigned to the faces of one layer.
type Material struct {
	Name     string
	Color    RGB
	Specular float64
	Texture  string // optional diffuse texture path
}

// Ambient returns the ambient color written alongside the diffuse one.
func (m Material) Ambient() RGB {
	return RGB{m.Color[0] * 0.625, m.Color[1] * 0.625, m.Color[2] * 0.625}
}

// Palette assigns a color to each layer kind.
type Palette map[Kind]RGB

// DefaultPalette is the classic board look: green substrate, red top copper,
// blue bottom copper, white top and yellow bottom silkscreen.
func DefaultPalette() Palette {
	return Palette{
		EdgeCuts:     {0, 0.8, 0},
		TopCopper:    {0.8, 0, 0},
		BottomCopper: {0, 0, 0.8},
		TopSilk:      {1, 1, 1},
		BottomSilk:   {0.8, 0.8, 0},
	}
}

// DefaultMaterial is used for every layer when colors are disabled.
var DefaultMaterial = Material{Name: "Default", Color: RGB{0.7, 0.7, 0.7}, Specular: 0.2}

// specular is the shininess of each kind: copper is polished, silkscreen
// ink is matte.
var specular = [...]float64{
	EdgeCuts:     0.1,
	TopCopper:    0.8,
	BottomCopper: 0.8,
	TopSilk:      0,
	BottomSilk:   0,
}

// Material returns the material for kind k, falling back to the default
// palette for kinds p does not cover.
func (p Palette) Material(k Kind) Material {
	c, ok := p[k]
	if !ok {
		c = DefaultPalette()[k]
	}
	m := Material{Name: k.MaterialName(), Color: c}
	if int(k) < len(specular) {
		m.Specular = specular[k]
	}
	return m
}
