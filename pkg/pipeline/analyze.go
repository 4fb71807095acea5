package pipeline

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/matzehuels/pcbmesh/pkg/assemble"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
	"github.com/matzehuels/pcbmesh/pkg/gerber"
	"github.com/matzehuels/pcbmesh/pkg/layer"
)

// LayerReport is the read-only inspection of one Gerber file: parse and
// assembly only, no mesh.
type LayerReport struct {
	Path string `json:"path" yaml:"path"`

	// Kind is the classified layer kind, empty when unknown. Unknown files
	// are assembled as filled artwork.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Mode string `json:"mode" yaml:"mode"`

	Units  string `json:"units" yaml:"units"`
	Format string `json:"format" yaml:"format"`

	Apertures int `json:"apertures" yaml:"apertures"`
	Commands  int `json:"commands" yaml:"commands"`
	Polygons  int `json:"polygons" yaml:"polygons"`
	Holes     int `json:"holes" yaml:"holes"`

	Bounds *Bounds `json:"bounds,omitempty" yaml:"bounds,omitempty"`

	// Detailed fields.
	CommandCounts map[string]int  `json:"command_counts,omitempty" yaml:"command_counts,omitempty"`
	ApertureList  []ApertureInfo  `json:"aperture_list,omitempty" yaml:"aperture_list,omitempty"`
	Stats         *assemble.Stats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Warnings      []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Bounds is an axis-aligned extent in mm.
type Bounds struct {
	MinX   float64 `json:"min_x" yaml:"min_x"`
	MinY   float64 `json:"min_y" yaml:"min_y"`
	MaxX   float64 `json:"max_x" yaml:"max_x"`
	MaxY   float64 `json:"max_y" yaml:"max_y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func newBounds(r geom.Rect) *Bounds {
	if r.Empty() {
		return nil
	}
	return &Bounds{
		MinX: r.Min.X, MinY: r.Min.Y,
		MaxX: r.Max.X, MaxY: r.Max.Y,
		Width: r.Width(), Height: r.Height(),
	}
}

// ApertureInfo describes one aperture definition.
type ApertureInfo struct {
	ID     int       `json:"id" yaml:"id"`
	Shape  string    `json:"shape" yaml:"shape"`
	Params []float64 `json:"params,omitempty" yaml:"params,omitempty,flow"`
	Hole   float64   `json:"hole,omitempty" yaml:"hole,omitempty"`
	Macro  string    `json:"macro,omitempty" yaml:"macro,omitempty"`
}

// AnalyzeOptions configures Analyze.
type AnalyzeOptions struct {
	// Kind forces the layer kind instead of classifying the file name.
	Kind     *layer.Kind
	Geometry Geometry
}

// Analyze parses and assembles the Gerber file at path and reports what
// it contains.
func Analyze(path string, detailed bool, opts AnalyzeOptions) (*LayerReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "layer file %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	return AnalyzeData(path, data, detailed, opts)
}

// AnalyzeData is Analyze on an in-memory source. name is reported as the
// path and used for classification.
func AnalyzeData(name string, data []byte, detailed bool, opts AnalyzeOptions) (*LayerReport, error) {
	rep := &LayerReport{Path: name, Units: gerber.UnitsMM.String(), Format: gerber.DefaultFormat.String()}

	kind, known := layer.Kind(0), false
	if opts.Kind != nil {
		kind, known = *opts.Kind, true
	} else {
		kind, known = layer.Classify(name)
	}
	if known {
		rep.Kind = kind.String()
	}

	var warnings []string
	popts := []gerber.Option{gerber.WithWarningHandler(func(w gerber.Warning) { warnings = append(warnings, w.String()) })}
	if known {
		popts = append(popts, gerber.WithLayer(kind.String()))
	}

	counts := make(map[gerber.Kind]int)
	var cmds []gerber.Command
	var apertures []ApertureInfo
	for c, err := range gerber.NewParser(data, popts...).Commands() {
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
		counts[c.Kind]++
		switch c.Kind {
		case gerber.KindSetUnits:
			rep.Units = c.Units.String()
		case gerber.KindSetFormat:
			rep.Format = c.Format.String()
		case gerber.KindApertureDefinition:
			a := c.Aperture
			apertures = append(apertures, ApertureInfo{ID: a.ID, Shape: a.Shape.String(), Params: a.Params, Hole: a.Hole, Macro: a.Macro})
		}
	}
	rep.Commands = len(cmds)
	rep.Apertures = len(apertures)

	g := Options{Geometry: opts.Geometry}
	g.SetDefaults()
	aopts := g.assembleOptions(kind)
	if !known {
		aopts.Mode = assemble.ModeFill
		aopts.Layer = ""
	}
	rep.Mode = aopts.Mode.String()
	res, err := assemble.AssembleCommands(cmds, aopts)
	if err != nil {
		return nil, err
	}
	rep.Polygons = res.Stats.Polygons
	rep.Holes = res.Stats.Holes
	rep.Bounds = newBounds(res.Bounds)

	if detailed {
		rep.CommandCounts = make(map[string]int, len(counts))
		for k, n := range counts {
			rep.CommandCounts[k.String()] = n
		}
		sort.Slice(apertures, func(i, j int) bool { return apertures[i].ID < apertures[j].ID })
		rep.ApertureList = apertures
		stats := res.Stats
		rep.Stats = &stats
		rep.Warnings = append(warnings, res.Warnings...)
	}
	return rep, nil
}

// BoardReport is the analysis of a layer directory.
type BoardReport struct {
	Dir          string        `json:"dir" yaml:"dir"`
	Layers       []LayerReport `json:"layers" yaml:"layers"`
	Errors       []LayerError  `json:"errors,omitempty" yaml:"errors,omitempty"`
	Duplicates   []string      `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Unclassified []string      `json:"unclassified,omitempty" yaml:"unclassified,omitempty"`
}

// LayerError records a layer file that failed to analyze.
type LayerError struct {
	Path  string `json:"path" yaml:"path"`
	Kind  string `json:"kind" yaml:"kind"`
	Code  string `json:"code" yaml:"code"`
	Error string `json:"error" yaml:"error"`
}

// AnalyzeDir analyzes every classified Gerber file in dir. A file that
// fails is listed in Errors and does not stop the others.
func AnalyzeDir(dir string, detailed bool, opts AnalyzeOptions) (*BoardReport, error) {
	scan, err := layer.Scan(dir)
	if err != nil {
		return nil, err
	}
	rep := &BoardReport{Dir: dir, Unclassified: scan.Unclassified}
	for _, d := range scan.Duplicates {
		rep.Duplicates = append(rep.Duplicates, d.Path)
	}
	for _, k := range scan.Files.Kinds() {
		path := scan.Files[k]
		o := opts
		o.Kind = &k
		lr, err := Analyze(path, detailed, o)
		if err != nil {
			rep.Errors = append(rep.Errors, LayerError{
				Path:  path,
				Kind:  k.String(),
				Code:  string(errors.GetCode(err)),
				Error: errors.UserMessage(err),
			})
			continue
		}
		lr.Path = filepath.Base(path)
		rep.Layers = append(rep.Layers, *lr)
	}
	return rep, nil
}
