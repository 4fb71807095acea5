package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/pcbmesh/pkg/errors"
	pcbio "github.com/matzehuels/pcbmesh/pkg/io"
	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/pipeline"
)

const gerberHeader = "%FSLAX46Y46*%\n%MOMM*%\n"

const edgeGerber = gerberHeader + "%ADD10C,0.1*%\nD10*\n" +
	"X0.0Y0.0D02*\nX10.0Y0.0D01*\nX10.0Y10.0D01*\nX0.0Y10.0D01*\nX0.0Y0.0D01*\nM02*\n"

const padGerber = gerberHeader + "%ADD11R,2.0X2.0*%\nD11*\nX5.0Y5.0D03*\nM02*\n"

const truncatedGerber = gerberHeader + "%ADD10C,0.1*%\nD10*\nX0.0Y0.0D02*\n"

// lockedBuffer is a bytes.Buffer safe for the spinner and the logger to
// write concurrently.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// writeBoard creates a directory with the given files.
func writeBoard(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// runCLI executes the root command with caching disabled and returns its
// standard output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWithConfig(t, "[cache]\nbackend = \"none\"\n", args...)
}

// runWithConfig executes the root command with config as pcbmesh.toml.
func runWithConfig(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "pcbmesh.toml")
	if err := os.WriteFile(cfg, []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	stderr := &lockedBuffer{}
	c := New(stderr, LogInfo)
	c.Out = &stdout
	t.Cleanup(func() { c.Close() })

	root := c.RootCommand()
	root.SetOut(&stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestConvertCommand(t *testing.T) {
	dir := writeBoard(t, map[string]string{
		"blinky-Edge_Cuts.gbr": edgeGerber,
		"blinky-F_Cu.gbr":      padGerber,
		"notes.txt":            "not a layer",
	})
	out := filepath.Join(t.TempDir(), "out", "blinky")

	stdout, err := runCLI(t, "convert", dir, "-o", out, "-f", "stl", "-t", "1.2")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	info, err := os.Stat(out + ".stl")
	if err != nil {
		t.Fatalf("model not written: %v", err)
	}
	if info.Size() <= 84 {
		t.Errorf("stl size = %d, want triangles", info.Size())
	}
	for _, want := range []string{"Edge Cuts", "blinky-F_Cu.gbr", "blinky.stl"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestConvertCommandColors(t *testing.T) {
	dir := writeBoard(t, map[string]string{"board.gko": edgeGerber, "board.gtl": padGerber})
	out := filepath.Join(t.TempDir(), "board")

	if _, err := runCLI(t, "convert", "-i", dir, "-o", out, "--colors"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	for _, ext := range []string{".obj", ".mtl"} {
		if _, err := os.Stat(out + ext); err != nil {
			t.Errorf("%s not written: %v", ext, err)
		}
	}
}

func TestConvertCommandOmitsBrokenLayer(t *testing.T) {
	dir := writeBoard(t, map[string]string{
		"b-Edge_Cuts.gbr": edgeGerber,
		"b-F_Silk.gbr":    truncatedGerber,
	})
	out := filepath.Join(t.TempDir(), "b")

	stdout, err := runCLI(t, "convert", dir, "-o", out, "-f", "stl")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(stdout, "omitted") {
		t.Errorf("broken silkscreen not reported:\n%s", stdout)
	}
}

func TestConvertCommandErrors(t *testing.T) {
	board := writeBoard(t, map[string]string{"b-Edge_Cuts.gbr": edgeGerber})
	noEdge := writeBoard(t, map[string]string{"b-F_Cu.gbr": padGerber})
	empty := t.TempDir()
	out := filepath.Join(t.TempDir(), "m")

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"bad thickness", []string{"convert", board, "-o", out, "-t", "0"}, errors.ErrCodeInvalidInput},
		{"bad format", []string{"convert", board, "-o", out, "-f", "step"}, errors.ErrCodeInvalidFormat},
		{"missing edge cuts", []string{"convert", noEdge, "-o", out}, errors.ErrCodeMissingEdgeCuts},
		{"no layers", []string{"convert", empty, "-o", out}, errors.ErrCodeInvalidInput},
		{"missing input", []string{"convert", filepath.Join(empty, "nope"), "-o", out}, errors.ErrCodeFileNotFound},
		{"unknown layer kind", []string{"convert", "--layer", "inner1=x.gbr", "-o", out}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %s, want %s (%v)", got, tt.code, err)
			}
		})
	}
}

func TestLayersWriteThenConvert(t *testing.T) {
	dir := writeBoard(t, map[string]string{
		"x-Edge_Cuts.gbr": edgeGerber,
		"x-B_Cu.gbr":      padGerber,
	})
	manifest := filepath.Join(dir, "board.json")

	stdout, err := runCLI(t, "layers", dir, "--write", manifest, "--name", "x")
	if err != nil {
		t.Fatalf("layers: %v", err)
	}
	if !strings.Contains(stdout, "Bottom Copper") {
		t.Errorf("layers output:\n%s", stdout)
	}

	m, err := pcbio.LoadManifest(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "x" || len(m.Layers) != 2 {
		t.Fatalf("manifest = %+v", m)
	}
	if got := m.Layers[layer.BottomCopper]; got != filepath.Join(dir, "x-B_Cu.gbr") {
		t.Errorf("bottom copper = %q", got)
	}

	out := filepath.Join(t.TempDir(), "x")
	if _, err := runCLI(t, "convert", manifest, "-o", out, "-f", "stl"); err != nil {
		t.Fatalf("convert manifest: %v", err)
	}
	if _, err := os.Stat(out + ".stl"); err != nil {
		t.Error(err)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	dir := writeBoard(t, map[string]string{
		"a-Edge_Cuts.gbr": edgeGerber,
		"a-F_Cu.gbr":      padGerber,
		"a-B_Silk.gbr":    truncatedGerber,
	})

	stdout, err := runCLI(t, "analyze", dir, "--output", "json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var rep pipeline.BoardReport
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout)
	}
	if len(rep.Layers) != 2 {
		t.Fatalf("layers = %d, want 2", len(rep.Layers))
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Kind != "bottom_silk" {
		t.Errorf("errors = %+v", rep.Errors)
	}
	for _, l := range rep.Layers {
		if l.Units != "mm" {
			t.Errorf("%s units = %q", l.Path, l.Units)
		}
	}
}

func TestAnalyzeCommandSingleFile(t *testing.T) {
	dir := writeBoard(t, map[string]string{"outline.txt.gbr": edgeGerber})
	path := filepath.Join(dir, "outline.txt.gbr")

	stdout, err := runCLI(t, "info", path, "--detailed")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if !strings.Contains(stdout, "D10") {
		t.Errorf("detailed output should list apertures:\n%s", stdout)
	}

	if _, err := runCLI(t, "analyze", dir, "--layer", "edge_cuts"); err == nil {
		t.Error("--layer with a directory should fail")
	}
	if _, err := runCLI(t, "analyze", path, "--output", "xml"); errors.GetCode(err) != errors.ErrCodeInvalidFormat {
		t.Errorf("bad output encoding: %v", err)
	}
}

func TestPreviewCommand(t *testing.T) {
	dir := writeBoard(t, map[string]string{"p-Edge_Cuts.gbr": edgeGerber, "p-F_Cu.gbr": padGerber})
	out := filepath.Join(t.TempDir(), "p.png")

	if _, err := runCLI(t, "preview", dir, "-o", out, "--side", "bottom", "--scale", "4", "--opaque"); err != nil {
		t.Fatalf("preview: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("not a PNG")
	}

	if _, err := runCLI(t, "preview", dir, "-o", out, "--side", "left"); err == nil {
		t.Error("unknown side should fail")
	}
}

func TestConfigShow(t *testing.T) {
	stdout, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[board]", "thickness = 1.6", `backend = "none"`} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show missing %q:\n%s", want, stdout)
		}
	}
}

func TestLogFileFlag(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "pcbmesh.log")
	dir := writeBoard(t, map[string]string{"l-Edge_Cuts.gbr": edgeGerber})
	out := filepath.Join(t.TempDir(), "l")

	if _, err := runCLI(t, "--log-file", logPath, "convert", dir, "-o", out, "-f", "stl"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(data), "wrote model") {
		t.Errorf("log file content:\n%s", data)
	}
}
