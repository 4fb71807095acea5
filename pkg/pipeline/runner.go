package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pcbmesh/pkg/cache"
	"github.com/matzehuels/pcbmesh/pkg/compose"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/export"
	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/mesh"
	"github.com/matzehuels/pcbmesh/pkg/observability"
)

// Runner executes conversions with caching. It holds no per-conversion
// state, so one Runner may serve concurrent conversions.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL overrides the cache lifetime of layer and artifact entries.
	TTL time.Duration
}

// NewRunner creates a runner. A nil cache disables caching and a nil
// keyer means cache.DefaultKeyer.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Convert reads opts.Layers, converts them and writes the artifacts next
// to opts.Output. Nothing is written unless every stage succeeds.
func (r *Runner) Convert(ctx context.Context, opts Options) (*Result, error) {
	opts.SetDefaults()
	if err := opts.ValidateForConvert(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	inputs, err := ReadLayers(opts.Layers)
	if err != nil {
		return nil, err
	}
	res, err := r.Build(ctx, inputs, opts)
	if err != nil {
		return nil, err
	}
	files, err := export.WriteFiles(filepath.Dir(opts.Output), res.Artifacts)
	if err != nil {
		return nil, err
	}
	res.Files = files
	opts.Logger.Info("wrote model", "files", files)
	return res, nil
}

// ReadLayers loads every file of files in stacking order.
func ReadLayers(files layer.Files) ([]LayerInput, error) {
	inputs := make([]LayerInput, 0, len(files))
	for _, k := range files.Kinds() {
		path := files[k]
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "%s layer %s", k, path).WithLayer(k.String())
			}
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s layer %s", k, path).WithLayer(k.String())
		}
		inputs = append(inputs, LayerInput{Kind: k, Name: filepath.Base(path), Data: data})
	}
	return inputs, nil
}

// Build converts in-memory layer sources into artifacts without writing
// anything.
func (r *Runner) Build(ctx context.Context, inputs []LayerInput, opts Options) (*Result, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	if err := checkInputs(inputs); err != nil {
		return nil, err
	}

	res := &Result{InputsHash: HashInputs(inputs)}
	key := r.Keyer.ArtifactKey(res.InputsHash, opts.artifactKeyOpts())
	if !opts.Refresh {
		if cached, ok := r.loadArtifacts(ctx, key); ok {
			cached.InputsHash = res.InputsHash
			cached.CacheInfo.ArtifactHit = true
			opts.Logger.Info("artifacts served from cache", "format", opts.Format)
			return cached, nil
		}
	}

	board, err := r.BoardWithInfo(ctx, inputs, opts, res)
	if err != nil {
		return nil, err
	}
	res.Board = board

	start := time.Now()
	m, rep := mesh.Build(board, mesh.Options{Epsilon: opts.Geometry.Epsilon, Logger: opts.Logger})
	for _, is := range rep.Issues {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: shape %d skipped: %v", is.Layer, is.Shape, is.Err))
	}
	res.Mesh = m
	res.Stats.Vertices = len(m.Vertices)
	res.Stats.Faces = len(m.Faces)
	res.Stats.Materials = len(m.Materials)
	res.Stats.Skipped = rep.Skipped()
	res.Stats.MeshTime = time.Since(start)
	observability.Pipeline().OnMeshComplete(ctx, res.Stats.Vertices, res.Stats.Faces, res.Stats.MeshTime)
	opts.Logger.Info("built mesh",
		"vertices", res.Stats.Vertices,
		"faces", res.Stats.Faces,
		"skipped", res.Stats.Skipped,
		"duration", res.Stats.MeshTime)

	start = time.Now()
	artifacts, err := export.Export(opts.Format, m, export.Options{Stem: opts.Stem, Colors: opts.Colors})
	res.Stats.ExportTime = time.Since(start)
	for _, a := range artifacts {
		res.Stats.Bytes += len(a.Data)
	}
	observability.Pipeline().OnExportComplete(ctx, string(opts.Format), res.Stats.Bytes, res.Stats.ExportTime, err)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	res.Artifacts = artifacts
	opts.Logger.Info("exported model",
		"format", opts.Format,
		"bytes", res.Stats.Bytes,
		"duration", res.Stats.ExportTime)

	r.storeArtifacts(ctx, key, res)
	return res, nil
}

// Board parses, assembles and composes the layers without meshing. The
// preview renderer uses it directly.
func (r *Runner) Board(ctx context.Context, inputs []LayerInput, opts Options) (*compose.Board, []string, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	r.applyLogger(&opts)
	if err := checkInputs(inputs); err != nil {
		return nil, nil, err
	}
	res := &Result{}
	b, err := r.BoardWithInfo(ctx, inputs, opts, res)
	if err != nil {
		return nil, nil, err
	}
	return b, res.Warnings, nil
}

// BoardWithInfo is Board recording layer summaries, warnings, timings and
// cache hits into res. opts must already carry defaults.
func (r *Runner) BoardWithInfo(ctx context.Context, inputs []LayerInput, opts Options, res *Result) (*compose.Board, error) {
	start := time.Now()
	layers, err := r.assembleLayers(ctx, inputs, opts)
	if err != nil {
		return nil, err
	}
	res.Stats.AssembleTime = time.Since(start)

	var placed []compose.Input
	for _, l := range layers {
		res.Warnings = append(res.Warnings, l.warnings...)
		sum := LayerSummary{Kind: l.kind, Name: l.name, Omitted: l.err != nil, CacheHit: l.hit}
		if l.hit {
			res.CacheInfo.LayerHits++
		}
		if l.err == nil {
			sum.Shapes = len(l.entry.Shapes)
			for _, s := range l.entry.Shapes {
				sum.Holes += len(s.Holes)
			}
			placed = append(placed, compose.Input{Kind: l.kind, Shapes: l.entry.Shapes})
		}
		res.Layers = append(res.Layers, sum)
	}

	board, err := compose.Compose(placed, opts.composeOptions())
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	lo, hi := board.ZRange()
	opts.Logger.Info("composed board",
		"layers", len(board.Layers),
		"width", board.Bounds.Width(),
		"height", board.Bounds.Height(),
		"z", fmt.Sprintf("%.3f..%.3f", lo, hi),
		"duration", res.Stats.AssembleTime)
	return board, nil
}

// checkInputs rejects duplicate kinds. A missing edge cuts layer is left
// to the compositor so it is reported with its own code.
func checkInputs(inputs []LayerInput) error {
	seen := make(map[layer.Kind]string, len(inputs))
	for _, in := range inputs {
		if prev, dup := seen[in.Kind]; dup {
			return errors.New(errors.ErrCodeInvalidInput, "%s given twice (%s and %s)", in.Kind, prev, in.Name)
		}
		seen[in.Kind] = in.Name
	}
	return nil
}

// HashInputs hashes the kinds and contents of inputs independently of
// their order.
func HashInputs(inputs []LayerInput) string {
	sorted := append([]LayerInput(nil), inputs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Kind < sorted[j].Kind })
	parts := make([][]byte, 0, 2*len(sorted))
	for _, in := range sorted {
		parts = append(parts, []byte(in.Kind.String()), in.Data)
	}
	return cache.HashParts(parts...)
}

func (o *Options) artifactKeyOpts() cache.ArtifactKeyOpts {
	geometry, _ := json.Marshal(o.Geometry)
	k := cache.ArtifactKeyOpts{
		Format:          string(o.Format),
		Stem:            o.Stem,
		Thickness:       o.Thickness,
		CopperThickness: o.CopperThickness,
		SilkThickness:   o.SilkThickness,
		Colors:          o.Colors,
		Geometry:        string(geometry),
	}
	if o.Colors {
		k.Palette = paletteKey(o.Palette)
	}
	return k
}

func paletteKey(p layer.Palette) string {
	var s string
	for _, k := range layer.All {
		if c, ok := p[k]; ok {
			s += k.String() + "=" + c.Hex() + ";"
		}
	}
	return s
}

// artifactEntry is the cached form of a finished conversion.
type artifactEntry struct {
	Artifacts []export.Artifact `json:"artifacts"`
	Layers    []LayerSummary    `json:"layers"`
	Warnings  []string          `json:"warnings,omitempty"`
	Stats     Stats             `json:"stats"`
}

func (r *Runner) loadArtifacts(ctx context.Context, key string) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return nil, false
	}
	var e artifactEntry
	if err := json.Unmarshal(data, &e); err != nil || len(e.Artifacts) == 0 {
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "artifact")
	return &Result{Artifacts: e.Artifacts, Layers: e.Layers, Warnings: e.Warnings, Stats: e.Stats}, true
}

func (r *Runner) storeArtifacts(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(artifactEntry{
		Artifacts: res.Artifacts,
		Layers:    res.Layers,
		Warnings:  res.Warnings,
		Stats:     res.Stats,
	})
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, r.ttl(cache.TTLArtifact)); err != nil {
		r.Logger.Debug("cache write failed", "key", key, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "artifact", len(data))
}

func (r *Runner) ttl(def time.Duration) time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return def
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
