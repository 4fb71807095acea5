// Package pipeline provides the conversion pipeline shared by the CLI and
// the HTTP API.
//
// The pipeline runs five stages strictly forward:
//
//  1. Parse: tokenize each layer's Gerber source into commands
//  2. Assemble: turn each layer's commands into closed shapes
//  3. Compose: stack the layers into a board with z ranges and materials
//  4. Mesh: extrude the board into one triangle mesh
//  5. Export: serialize the mesh as OBJ, STL or USDZ
//
// Parse and assemble run once per layer, concurrently unless
// Options.Sequential is set. Their output is cached per layer, and the
// exported artifacts are cached per board, so repeated conversions of
// unchanged files skip the expensive stages.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Convert(ctx, pipeline.Options{
//	    Layers:    files,
//	    Thickness: 1.6,
//	    Format:    export.FormatOBJ,
//	    Colors:    true,
//	    Output:    "output/pcb_model",
//	})
//
// Failures on copper and silkscreen layers do not abort a conversion: the
// layer is left out and the failure is listed in Result.Warnings. A failure
// on the edge cuts layer aborts before anything is written.
package pipeline

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pcbmesh/pkg/assemble"
	"github.com/matzehuels/pcbmesh/pkg/compose"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/export"
	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/mesh"
)

const (
	// DefaultFormat is the export format used when none is given.
	DefaultFormat = export.FormatOBJ

	// DefaultOutput is the output path stem used by the CLI.
	DefaultOutput = "output/pcb_model"
)

// LayerInput is one layer's Gerber source.
type LayerInput struct {
	Kind layer.Kind
	Name string // file name, used in logs and warnings
	Data []byte
}

// Geometry holds the assembly tuning shared by every layer.
type Geometry struct {
	Epsilon        float64 `json:"epsilon"`
	ArcSegments    int     `json:"arc_segments"`
	CircleSegments int     `json:"circle_segments"`
	MaxUnionShapes int     `json:"max_union_shapes"`
}

// Options configures a conversion.
type Options struct {
	// Layers maps kinds to files. Used by Convert only; Build takes its
	// inputs directly.
	Layers layer.Files

	// Output is the path stem of the written files, e.g. "out/board"
	// produces out/board.obj and out/board.mtl. Used by Convert only.
	Output string

	// Stem names the artifacts produced by Build. Convert derives it from
	// Output.
	Stem string

	Thickness       float64
	CopperThickness float64
	SilkThickness   float64

	Format  export.Format
	Colors  bool
	Palette layer.Palette

	Geometry Geometry

	// Sequential disables per-layer concurrency.
	Sequential bool

	// Refresh ignores cached results; fresh results are still stored.
	Refresh bool

	Logger *log.Logger `json:"-"`
}

// SetDefaults fills zero fields. Thickness is left alone so that a missing
// value is reported by Validate.
func (o *Options) SetDefaults() {
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.CopperThickness == 0 {
		o.CopperThickness = compose.DefaultCopperThickness
	}
	if o.SilkThickness == 0 {
		o.SilkThickness = compose.DefaultSilkThickness
	}
	if o.Palette == nil {
		o.Palette = layer.DefaultPalette()
	}
	if o.Geometry.Epsilon <= 0 {
		o.Geometry.Epsilon = assemble.DefaultEpsilon
	}
	if o.Geometry.ArcSegments <= 0 {
		o.Geometry.ArcSegments = assemble.DefaultArcSegments
	}
	if o.Geometry.CircleSegments < 3 {
		o.Geometry.CircleSegments = assemble.DefaultCircleSegments
	}
	if o.Geometry.MaxUnionShapes <= 0 {
		o.Geometry.MaxUnionShapes = assemble.DefaultMaxUnionShapes
	}
	if o.Stem == "" && o.Output != "" {
		o.Stem = filepath.Base(o.Output)
	}
}

// Validate checks the settings shared by Build and Convert.
func (o *Options) Validate() error {
	if _, err := export.ParseFormat(string(o.Format)); err != nil {
		return err
	}
	c := o.composeOptions()
	if err := c.Validate(); err != nil {
		return err
	}
	if o.Stem != "" {
		if err := errors.ValidateUploadName(o.Stem + o.Format.Ext()); err != nil {
			return err
		}
	}
	return nil
}

// ValidateForConvert additionally checks the file inputs and output path.
func (o *Options) ValidateForConvert() error {
	if err := errors.ValidateOutputStem(o.Output); err != nil {
		return err
	}
	if len(o.Layers) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no layer files given")
	}
	return o.Validate()
}

func (o *Options) assembleOptions(k layer.Kind) assemble.Options {
	mode := assemble.ModeFill
	if k.IsOutline() {
		mode = assemble.ModeOutline
	}
	return assemble.Options{
		Mode:           mode,
		Epsilon:        o.Geometry.Epsilon,
		ArcSegments:    o.Geometry.ArcSegments,
		CircleSegments: o.Geometry.CircleSegments,
		MaxUnionShapes: o.Geometry.MaxUnionShapes,
		Layer:          k.String(),
		Logger:         o.Logger,
	}
}

func (o *Options) composeOptions() compose.Options {
	return compose.Options{
		Thickness:       o.Thickness,
		CopperThickness: o.CopperThickness,
		SilkThickness:   o.SilkThickness,
		Colors:          o.Colors,
		Palette:         o.Palette,
	}
}

// Result contains the outputs of a conversion.
type Result struct {
	// Board and Mesh are nil when the artifacts came from the cache.
	Board *compose.Board
	Mesh  *mesh.Mesh

	// Artifacts are the exported files in write order.
	Artifacts []export.Artifact

	// Files are the paths written by Convert.
	Files []string

	// InputsHash identifies the layer sources of this conversion.
	InputsHash string

	// Layers summarizes each input layer, in stacking order.
	Layers []LayerSummary

	// Warnings lists omitted layers, skipped shapes and parser notes.
	Warnings []string

	Stats     Stats
	CacheInfo CacheInfo
}

// LayerSummary describes one input layer after assembly.
type LayerSummary struct {
	Kind     layer.Kind `json:"kind" yaml:"kind"`
	Name     string     `json:"name" yaml:"name"`
	Shapes   int        `json:"shapes" yaml:"shapes"`
	Holes    int        `json:"holes" yaml:"holes"`
	Omitted  bool       `json:"omitted,omitempty" yaml:"omitted,omitempty"`
	CacheHit bool       `json:"cache_hit" yaml:"cache_hit"`
}

// Stats contains timing and size information.
type Stats struct {
	Vertices     int           `json:"vertices" yaml:"vertices"`
	Faces        int           `json:"faces" yaml:"faces"`
	Materials    int           `json:"materials" yaml:"materials"`
	Skipped      int           `json:"skipped_shapes" yaml:"skipped_shapes"`
	Bytes        int           `json:"bytes" yaml:"bytes"`
	AssembleTime time.Duration `json:"assemble_time" yaml:"assemble_time"`
	MeshTime     time.Duration `json:"mesh_time" yaml:"mesh_time"`
	ExportTime   time.Duration `json:"export_time" yaml:"export_time"`
}

// CacheInfo tracks which stages were served from the cache.
type CacheInfo struct {
	LayerHits   int  `json:"layer_hits" yaml:"layer_hits"`
	ArtifactHit bool `json:"artifact_hit" yaml:"artifact_hit"`
}
