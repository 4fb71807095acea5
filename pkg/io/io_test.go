package io

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

func TestReadManifest(t *testing.T) {
	in := `{
  "name": "blinky",
  "thickness": 0.8,
  "layers": {"edge_cuts": "a.gbr", "F.Cu": "b.gbr", "bottom_silk": "c.gbr"}
}`
	m, err := ReadManifest(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "blinky" || m.Thickness != 0.8 {
		t.Errorf("name/thickness = %q/%v", m.Name, m.Thickness)
	}
	want := layer.Files{layer.EdgeCuts: "a.gbr", layer.TopCopper: "b.gbr", layer.BottomSilk: "c.gbr"}
	if len(m.Layers) != len(want) {
		t.Fatalf("layers = %v", m.Layers)
	}
	for k, p := range want {
		if m.Layers[k] != p {
			t.Errorf("layer %s = %q, want %q", k, m.Layers[k], p)
		}
	}
}

func TestReadManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"malformed", `{"layers":`},
		{"unknown field", `{"layers":{"edge_cuts":"a.gbr"},"colour":1}`},
		{"unknown layer", `{"layers":{"inner1":"a.gbr"}}`},
		{"duplicate kind", `{"layers":{"edge_cuts":"a.gbr","outline":"b.gbr"}}`},
		{"empty path", `{"layers":{"edge_cuts":""}}`},
		{"no layers", `{"name":"x"}`},
		{"negative thickness", `{"thickness":-1,"layers":{"edge_cuts":"a.gbr"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadManifest(strings.NewReader(tt.in))
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("err = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.json")
	m := &Manifest{
		Name: "blinky",
		Layers: layer.Files{
			layer.EdgeCuts:  filepath.Join(dir, "gerbers", "edge.gbr"),
			layer.TopCopper: "/elsewhere/top.gbr",
		},
	}
	if err := SaveManifest(path, m); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"edge_cuts": "gerbers/edge.gbr"`) {
		t.Errorf("local path not stored relative:\n%s", raw)
	}
	if !strings.Contains(string(raw), `"top_copper": "/elsewhere/top.gbr"`) {
		t.Errorf("outside path not kept absolute:\n%s", raw)
	}

	got, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Layers[layer.EdgeCuts] != m.Layers[layer.EdgeCuts] {
		t.Errorf("edge path = %q, want %q", got.Layers[layer.EdgeCuts], m.Layers[layer.EdgeCuts])
	}
	if got.Layers[layer.TopCopper] != "/elsewhere/top.gbr" {
		t.Errorf("top path = %q", got.Layers[layer.TopCopper])
	}
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

type sample struct {
	Path  string     `json:"path" yaml:"path"`
	Kind  layer.Kind `json:"kind" yaml:"kind"`
	Count int        `json:"count" yaml:"count"`
}

func TestWriteReport(t *testing.T) {
	v := sample{Path: "edge.gbr", Kind: layer.EdgeCuts, Count: 4}
	tests := []struct {
		enc  Encoding
		want string
	}{
		{EncodingJSON, "{\n  \"path\": \"edge.gbr\",\n  \"kind\": \"edge_cuts\",\n  \"count\": 4\n}\n"},
		{EncodingYAML, "path: edge.gbr\nkind: edge_cuts\ncount: 4\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.enc), func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteReport(&buf, v, tt.enc); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("got\n%s\nwant\n%s", buf.String(), tt.want)
			}
		})
	}

	if err := WriteReport(&bytes.Buffer{}, v, "toml"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("unknown encoding: %v", err)
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"json", EncodingJSON, false},
		{"YAML", EncodingYAML, false},
		{"yml", EncodingYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseEncoding(%q) = %q, %v", tt.in, got, err)
		}
	}
}
