package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pcbmesh/pkg/cache"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/export"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

const header = "%FSLAX46Y46*%\n%MOMM*%\n"

// edge is a 10 x 10 mm board outline.
const edge = header + "%ADD10C,0.1*%\nD10*\n" +
	"X0.0Y0.0D02*\nX10.0Y0.0D01*\nX10.0Y10.0D01*\nX0.0Y10.0D01*\nX0.0Y0.0D01*\nM02*\n"

// pad is a single 2 x 2 mm flashed pad.
const pad = header + "%ADD11R,2.0X2.0*%\nD11*\nX5.0Y5.0D03*\nM02*\n"

// truncated lacks M02.
const truncated = header + "%ADD10C,0.1*%\nD10*\nX0.0Y0.0D02*\n"

func quiet() *log.Logger { return log.New(io.Discard) }

func newTestRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, quiet())
}

func inputs(layers map[layer.Kind]string) []LayerInput {
	var out []LayerInput
	for _, k := range layer.All {
		if src, ok := layers[k]; ok {
			out = append(out, LayerInput{Kind: k, Name: k.String() + ".gbr", Data: []byte(src)})
		}
	}
	return out
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"ok", Options{Thickness: 1.6}, ""},
		{"no thickness", Options{}, errors.ErrCodeInvalidInput},
		{"negative thickness", Options{Thickness: -1}, errors.ErrCodeInvalidInput},
		{"bad format", Options{Thickness: 1.6, Format: "step"}, errors.ErrCodeInvalidFormat},
		{"bad stem", Options{Thickness: 1.6, Stem: "../x"}, errors.ErrCodeInvalidPath},
		{"bad color", Options{Thickness: 1.6, Palette: layer.Palette{layer.TopCopper: {2, 0, 0}}}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.SetDefaults()
			err := tt.opts.Validate()
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("Validate() = %v, want code %q", err, tt.code)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	opts := Options{Output: "out/blinky"}
	opts.SetDefaults()
	if opts.Format != export.FormatOBJ || opts.Stem != "blinky" {
		t.Errorf("format %q stem %q", opts.Format, opts.Stem)
	}
	if opts.Thickness != 0 {
		t.Error("thickness should not be defaulted")
	}
	if opts.Geometry.Epsilon != 1e-4 || opts.Geometry.ArcSegments == 0 {
		t.Errorf("geometry = %+v", opts.Geometry)
	}
}

func TestBuildEdgeOnly(t *testing.T) {
	r := newTestRunner(nil)
	res, err := r.Build(context.Background(), inputs(map[layer.Kind]string{layer.EdgeCuts: edge}),
		Options{Thickness: 1.6, Format: export.FormatSTL})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Vertices != 8 || res.Stats.Faces != 12 {
		t.Errorf("stats = %+v, want 8 vertices and 12 faces", res.Stats)
	}
	if len(res.Artifacts) != 1 || res.Artifacts[0].Name != "board.stl" {
		t.Fatalf("artifacts = %v", res.Artifacts)
	}
	if got, want := len(res.Artifacts[0].Data), 84+50*12; got != want {
		t.Errorf("stl size = %d, want %d", got, want)
	}
	lo, hi := res.Mesh.Bounds()
	if lo.Z != 0 || hi.Z != 1.6 || hi.X != 10 || hi.Y != 10 {
		t.Errorf("bounds = %v %v", lo, hi)
	}
}

func TestBuildColoredLayers(t *testing.T) {
	r := newTestRunner(nil)
	for _, sequential := range []bool{false, true} {
		res, err := r.Build(context.Background(),
			inputs(map[layer.Kind]string{layer.EdgeCuts: edge, layer.TopCopper: pad, layer.BottomCopper: pad}),
			Options{Thickness: 1.6, Colors: true, Stem: "blinky", Sequential: sequential})
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Board.Layers) != 3 || res.Stats.Materials != 3 {
			t.Errorf("layers %d materials %d", len(res.Board.Layers), res.Stats.Materials)
		}
		var names []string
		for _, a := range res.Artifacts {
			names = append(names, a.Name)
		}
		if strings.Join(names, ",") != "blinky.obj,blinky.mtl" {
			t.Errorf("artifacts = %v", names)
		}
		if len(res.Layers) != 3 || res.Layers[0].Kind != layer.EdgeCuts || res.Layers[2].Kind != layer.BottomCopper {
			t.Errorf("layer summaries out of order: %+v", res.Layers)
		}
		if len(res.Warnings) != 0 {
			t.Errorf("warnings = %v", res.Warnings)
		}
	}
}

func TestBuildNonEdgeFailureIsWarning(t *testing.T) {
	r := newTestRunner(nil)
	res, err := r.Build(context.Background(),
		inputs(map[layer.Kind]string{layer.EdgeCuts: edge, layer.TopSilk: truncated}),
		Options{Thickness: 1.6})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Board.Layers) != 1 {
		t.Errorf("failed layer was not omitted: %d layers", len(res.Board.Layers))
	}
	if len(res.Warnings) != 1 || !strings.HasPrefix(res.Warnings[0], "top_silk omitted") {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if !res.Layers[1].Omitted {
		t.Errorf("summary = %+v", res.Layers[1])
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		layers []LayerInput
		code   errors.Code
	}{
		{"edge failure", inputs(map[layer.Kind]string{layer.EdgeCuts: truncated, layer.TopCopper: pad}), errors.ErrCodeTruncatedFile},
		{"no edge", inputs(map[layer.Kind]string{layer.TopCopper: pad}), errors.ErrCodeMissingEdgeCuts},
		{"duplicate", []LayerInput{{Kind: layer.EdgeCuts, Data: []byte(edge)}, {Kind: layer.EdgeCuts, Data: []byte(edge)}}, errors.ErrCodeInvalidInput},
	}
	r := newTestRunner(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Build(context.Background(), tt.layers, Options{Thickness: 1.6})
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestBuildEdgeFailureCarriesLayer(t *testing.T) {
	r := newTestRunner(nil)
	_, err := r.Build(context.Background(), inputs(map[layer.Kind]string{layer.EdgeCuts: truncated}), Options{Thickness: 1.6})
	e, ok := errors.As(err)
	if !ok || e.Layer != "edge_cuts" {
		t.Errorf("err = %v", err)
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestRunner(nil).Build(ctx, inputs(map[layer.Kind]string{layer.EdgeCuts: edge}), Options{Thickness: 1.6})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBuildCache(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(cache.NewMemoryCache())
	in := inputs(map[layer.Kind]string{layer.EdgeCuts: edge, layer.TopCopper: pad})
	opts := Options{Thickness: 1.6, Format: export.FormatSTL}

	first, err := r.Build(ctx, in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.ArtifactHit || first.CacheInfo.LayerHits != 0 {
		t.Errorf("cold cache info = %+v", first.CacheInfo)
	}

	second, err := r.Build(ctx, in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.ArtifactHit || second.Mesh != nil {
		t.Errorf("warm cache info = %+v", second.CacheInfo)
	}
	if !bytes.Equal(first.Artifacts[0].Data, second.Artifacts[0].Data) {
		t.Error("cached artifact differs")
	}
	if second.Stats.Faces != first.Stats.Faces {
		t.Errorf("cached stats = %+v", second.Stats)
	}

	// A different format misses the artifact cache but reuses both layers.
	opts.Format = export.FormatOBJ
	third, err := r.Build(ctx, in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.ArtifactHit || third.CacheInfo.LayerHits != 2 {
		t.Errorf("format change cache info = %+v", third.CacheInfo)
	}

	opts.Refresh = true
	fourth, err := r.Build(ctx, in, opts)
	if err != nil {
		t.Fatal(err)
	}
	if fourth.CacheInfo.ArtifactHit || fourth.CacheInfo.LayerHits != 0 {
		t.Errorf("refresh cache info = %+v", fourth.CacheInfo)
	}
}

func TestHashInputsOrderIndependent(t *testing.T) {
	a := []LayerInput{{Kind: layer.EdgeCuts, Data: []byte("a")}, {Kind: layer.TopCopper, Data: []byte("b")}}
	b := []LayerInput{a[1], a[0]}
	if HashInputs(a) != HashInputs(b) {
		t.Error("hash depends on input order")
	}
	c := []LayerInput{{Kind: layer.EdgeCuts, Data: []byte("b")}, {Kind: layer.TopCopper, Data: []byte("a")}}
	if HashInputs(a) == HashInputs(c) {
		t.Error("hash ignores layer kinds")
	}
}

func writeLayers(t *testing.T, dir string, layers map[string]string) {
	t.Helper()
	for name, src := range layers {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	writeLayers(t, dir, map[string]string{"board-Edge_Cuts.gbr": edge, "board-F_Cu.gbr": pad})
	out := filepath.Join(dir, "out", "board")

	res, err := newTestRunner(nil).Convert(context.Background(), Options{
		Layers: layer.Files{
			layer.EdgeCuts:  filepath.Join(dir, "board-Edge_Cuts.gbr"),
			layer.TopCopper: filepath.Join(dir, "board-F_Cu.gbr"),
		},
		Thickness: 1.6,
		Colors:    true,
		Output:    out,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{out + ".obj", out + ".mtl"}
	if strings.Join(res.Files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", res.Files, want)
	}
	obj, err := os.ReadFile(out + ".obj")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(obj), "\nmtllib board.mtl\n") {
		t.Error("obj does not reference its material library")
	}
}

func TestConvertWritesNothingOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		layers map[string]string
		files  func(dir string) layer.Files
		code   errors.Code
	}{
		{
			name:   "truncated edge cuts",
			layers: map[string]string{"edge.gbr": truncated},
			files: func(dir string) layer.Files {
				return layer.Files{layer.EdgeCuts: filepath.Join(dir, "edge.gbr")}
			},
			code: errors.ErrCodeTruncatedFile,
		},
		{
			name:   "no edge cuts",
			layers: map[string]string{"top.gbr": pad},
			files: func(dir string) layer.Files {
				return layer.Files{layer.TopCopper: filepath.Join(dir, "top.gbr")}
			},
			code: errors.ErrCodeMissingEdgeCuts,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeLayers(t, dir, tt.layers)
			out := filepath.Join(dir, "out", "board")

			_, err := newTestRunner(nil).Convert(context.Background(), Options{
				Layers:    tt.files(dir),
				Thickness: 1.6,
				Format:    export.FormatSTL,
				Output:    out,
			})
			if !errors.Is(err, tt.code) {
				t.Fatalf("err = %v, want %s", err, tt.code)
			}
			if _, err := os.Stat(out + ".stl"); !os.IsNotExist(err) {
				t.Errorf("model written on failure: %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
				t.Errorf("output directory created on failure: %v", err)
			}
		})
	}
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"no layers", Options{Thickness: 1.6, Output: filepath.Join(dir, "x")}, errors.ErrCodeInvalidInput},
		{"no output", Options{Thickness: 1.6, Layers: layer.Files{layer.EdgeCuts: "e.gbr"}}, errors.ErrCodeInvalidPath},
		{"missing file", Options{Thickness: 1.6, Output: filepath.Join(dir, "x"),
			Layers: layer.Files{layer.EdgeCuts: filepath.Join(dir, "nope.gbr")}}, errors.ErrCodeFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestRunner(nil).Convert(context.Background(), tt.opts)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	writeLayers(t, dir, map[string]string{"board-Edge_Cuts.gbr": edge})

	rep, err := Analyze(filepath.Join(dir, "board-Edge_Cuts.gbr"), false, AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != "edge_cuts" || rep.Mode != "outline" || rep.Units != "mm" {
		t.Errorf("report = %+v", rep)
	}
	if rep.Apertures != 1 || rep.Polygons != 1 || rep.Holes != 0 {
		t.Errorf("counts = %+v", rep)
	}
	if rep.Bounds == nil || rep.Bounds.Width != 10 || rep.Bounds.Height != 10 {
		t.Errorf("bounds = %+v", rep.Bounds)
	}
	if rep.CommandCounts != nil || rep.ApertureList != nil {
		t.Error("detail fields set without detailed")
	}

	rep, err = Analyze(filepath.Join(dir, "board-Edge_Cuts.gbr"), true, AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.CommandCounts["draw"] != 4 || rep.CommandCounts["aperture_definition"] != 1 {
		t.Errorf("command counts = %v", rep.CommandCounts)
	}
	total := 0
	for _, n := range rep.CommandCounts {
		total += n
	}
	if total != rep.Commands {
		t.Errorf("command counts sum to %d, Commands = %d", total, rep.Commands)
	}
	if len(rep.ApertureList) != 1 || rep.ApertureList[0].ID != 10 || rep.ApertureList[0].Shape != "circle" {
		t.Errorf("apertures = %+v", rep.ApertureList)
	}
	if rep.Stats == nil || rep.Stats.Draws != 4 {
		t.Errorf("stats = %+v", rep.Stats)
	}
}

func TestAnalyzeForcedKind(t *testing.T) {
	k := layer.EdgeCuts
	rep, err := AnalyzeData("outline.txt", []byte(edge), false, AnalyzeOptions{Kind: &k})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Mode != "outline" || rep.Polygons != 1 {
		t.Errorf("report = %+v", rep)
	}

	rep, err = AnalyzeData("pads.txt", []byte(pad), false, AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != "" || rep.Mode != "fill" || rep.Polygons != 1 {
		t.Errorf("unclassified report = %+v", rep)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	_, err := Analyze(filepath.Join(t.TempDir(), "nope.gbr"), false, AnalyzeOptions{})
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file: %v", err)
	}
	_, err = AnalyzeData("x.gbr", []byte(truncated), false, AnalyzeOptions{})
	if !errors.Is(err, errors.ErrCodeTruncatedFile) {
		t.Errorf("truncated: %v", err)
	}
}

func TestAnalyzeDir(t *testing.T) {
	dir := t.TempDir()
	writeLayers(t, dir, map[string]string{
		"board-Edge_Cuts.gbr": edge,
		"board-F_Cu.gbr":      pad,
		"board-B_Cu.gbr":      truncated,
		"board-In1_Cu.gbr":    pad,
	})
	rep, err := AnalyzeDir(dir, false, AnalyzeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Layers) != 2 || rep.Layers[0].Path != "board-Edge_Cuts.gbr" || rep.Layers[1].Kind != "top_copper" {
		t.Errorf("layers = %+v", rep.Layers)
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Code != "TRUNCATED_FILE" || rep.Errors[0].Kind != "bottom_copper" {
		t.Errorf("errors = %+v", rep.Errors)
	}
	if len(rep.Unclassified) != 1 || filepath.Base(rep.Unclassified[0]) != "board-In1_Cu.gbr" {
		t.Errorf("unclassified = %v", rep.Unclassified)
	}
}
