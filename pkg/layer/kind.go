// Package layer names the board layers pcbmesh understands, recognizes them
// from file names, and assigns them materials.
package layer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matzehuels/pcbmesh/pkg/errors"
)

// Kind is a board layer role.
type Kind uint8

const (
	EdgeCuts Kind = iota
	TopCopper
	BottomCopper
	TopSilk
	BottomSilk
)

// All lists every kind in stacking order from the board core outwards.
var All = []Kind{EdgeCuts, TopCopper, BottomCopper, TopSilk, BottomSilk}

var kindNames = [...]string{
	EdgeCuts:     "edge_cuts",
	TopCopper:    "top_copper",
	BottomCopper: "bottom_copper",
	TopSilk:      "top_silk",
	BottomSilk:   "bottom_silk",
}

var displayNames = [...]string{
	EdgeCuts:     "Edge Cuts",
	TopCopper:    "Top Copper",
	BottomCopper: "Bottom Copper",
	TopSilk:      "Top Silkscreen",
	BottomSilk:   "Bottom Silkscreen",
}

var materialNames = [...]string{
	EdgeCuts:     "EdgeCuts",
	TopCopper:    "TopCopper",
	BottomCopper: "BottomCopper",
	TopSilk:      "TopSilkscreen",
	BottomSilk:   "BottomSilkscreen",
}

// String returns the snake_case identifier used in manifests, flags and
// API form fields.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// DisplayName returns a human-readable name.
func (k Kind) DisplayName() string {
	if int(k) < len(displayNames) {
		return displayNames[k]
	}
	return k.String()
}

// MaterialName returns the identifier used for the layer's material in
// exported files.
func (k Kind) MaterialName() string {
	if int(k) < len(materialNames) {
		return materialNames[k]
	}
	return k.String()
}

// IsOutline reports whether k describes the board outline rather than
// filled artwork.
func (k Kind) IsOutline() bool { return k == EdgeCuts }

// IsTop reports whether k sits on the top side of the board.
func (k Kind) IsTop() bool { return k == TopCopper || k == TopSilk }

// IsBottom reports whether k sits on the bottom side of the board.
func (k Kind) IsBottom() bool { return k == BottomCopper || k == BottomSilk }

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

var kindAliases = map[string]Kind{
	"edge": EdgeCuts, "edges": EdgeCuts, "outline": EdgeCuts, "edge.cuts": EdgeCuts, "cuts": EdgeCuts,
	"f.cu": TopCopper, "f_cu": TopCopper, "top": TopCopper, "top.cu": TopCopper,
	"b.cu": BottomCopper, "b_cu": BottomCopper, "bottom": BottomCopper, "bottom.cu": BottomCopper,
	"f.silk": TopSilk, "f_silk": TopSilk, "f.silks": TopSilk, "top.silk": TopSilk, "top_silkscreen": TopSilk,
	"b.silk": BottomSilk, "b_silk": BottomSilk, "b.silks": BottomSilk, "bottom.silk": BottomSilk, "bottom_silkscreen": BottomSilk,
}

// ParseKind parses a kind identifier or one of its common aliases.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if s == name {
			return Kind(k), nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown layer %q (valid: %s)", s, strings.Join(Names(), ", "))
}

// Names returns the identifiers of all kinds.
func Names() []string {
	out := make([]string, len(All))
	for i, k := range All {
		out[i] = k.String()
	}
	return out
}

// Files maps each layer kind to the file providing it.
type Files map[Kind]string

// Kinds returns the kinds present in f in stacking order.
func (f Files) Kinds() []Kind {
	out := make([]Kind, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
