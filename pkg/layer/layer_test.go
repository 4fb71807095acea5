package layer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Kind
		ok   bool
	}{
		{"board-Edge_Cuts.gbr", EdgeCuts, true},
		{"outline.gbr", EdgeCuts, true},
		{"board-F_Cu.gbr", TopCopper, true},
		{"board-F.Cu.gbr", TopCopper, true},
		{"board-B_Cu.gbr", BottomCopper, true},
		{"board-F_Silkscreen.gbr", TopSilk, true},
		{"board-B.SilkS.gbr", BottomSilk, true},
		{"BOARD.GTL", TopCopper, true},
		{"board.gbo", BottomSilk, true},
		{"board.gm1", EdgeCuts, true},
		{"board-F_Mask.gbr", 0, false},
		{"board-F_Cu.drl", 0, false},
		{"readme.txt", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.name)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("Classify(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range All {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if got, err := ParseKind("F.Cu"); err != nil || got != TopCopper {
		t.Errorf("ParseKind(F.Cu) = %v, %v", got, err)
	}
	if _, err := ParseKind("inner1"); err == nil {
		t.Error("ParseKind(inner1) error = nil")
	}
}

func TestKindText(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("bottom_silk")); err != nil || k != BottomSilk {
		t.Fatalf("UnmarshalText = %v, %v", k, err)
	}
	b, _ := TopCopper.MarshalText()
	if string(b) != "top_copper" {
		t.Errorf("MarshalText = %s", b)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"a-Edge_Cuts.gbr", "a-F_Cu.gbr", "b-F_Cu.gbr", "a-F_Mask.gbr", "notes.txt", "a-B_Cu.gbr",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("M02*"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.gbr"), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 3 {
		t.Fatalf("files = %v, want 3 kinds", res.Files)
	}
	if got := filepath.Base(res.Files[TopCopper]); got != "a-F_Cu.gbr" {
		t.Errorf("top copper = %s, want the first file in name order", got)
	}
	if len(res.Duplicates) != 1 || filepath.Base(res.Duplicates[0].Path) != "b-F_Cu.gbr" {
		t.Errorf("duplicates = %+v", res.Duplicates)
	}
	if len(res.Unclassified) != 1 || filepath.Base(res.Unclassified[0]) != "a-F_Mask.gbr" {
		t.Errorf("unclassified = %v", res.Unclassified)
	}
	if kinds := res.Files.Kinds(); kinds[0] != EdgeCuts || kinds[2] != BottomCopper {
		t.Errorf("Kinds() = %v", kinds)
	}

	if _, err := Scan(filepath.Join(dir, "missing")); err == nil {
		t.Error("Scan(missing) error = nil")
	}
}

func TestPalette(t *testing.T) {
	p := Palette{TopCopper: {1, 0.5, 0}}
	if m := p.Material(TopCopper); m.Name != "TopCopper" || m.Color != (RGB{1, 0.5, 0}) {
		t.Errorf("Material(TopCopper) = %+v", m)
	}
	if m := p.Material(EdgeCuts); m.Color != (RGB{0, 0.8, 0}) {
		t.Errorf("fallback color = %v", m.Color)
	}
	if hex := (RGB{1, 0.5, 0}).Hex(); hex != "#ff8000" {
		t.Errorf("Hex() = %s", hex)
	}
	if err := (RGB{1.2, 0, 0}).Validate(); err == nil {
		t.Error("Validate accepted 1.2")
	}
}

func TestParseRGB(t *testing.T) {
	tests := []struct {
		in   string
		want RGB
		ok   bool
	}{
		{"#ff0000", RGB{1, 0, 0}, true},
		{"00FF00", RGB{0, 1, 0}, true},
		{" #000000 ", RGB{}, true},
		{"#fff", RGB{}, false},
		{"#gg0000", RGB{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRGB(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("ParseRGB(%q) error = %v", tt.in, err)
			}
			if tt.ok && got != tt.want {
				t.Errorf("ParseRGB(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
