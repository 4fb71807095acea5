package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pcbmesh/pkg/assemble"
	"github.com/matzehuels/pcbmesh/pkg/cache"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/geom"
	"github.com/matzehuels/pcbmesh/pkg/gerber"
	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/observability"
)

// layerEntry is the cached form of an assembled layer.
type layerEntry struct {
	Shapes   []geom.Shape `json:"shapes"`
	Warnings []string     `json:"warnings,omitempty"`
}

type layerOutcome struct {
	kind     layer.Kind
	name     string
	entry    *layerEntry
	warnings []string
	hit      bool
	err      error
}

// assembleLayers parses and assembles every input. Outcomes are returned
// in stacking order whatever order the layers finish in. Only an edge cuts
// failure is returned as an error; other failures are recorded on the
// outcome and turned into warnings.
func (r *Runner) assembleLayers(ctx context.Context, inputs []LayerInput, opts Options) ([]layerOutcome, error) {
	out := make([]layerOutcome, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Sequential {
		g.SetLimit(1)
	}
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o := r.assembleLayer(gctx, in, opts)
			out[i] = o
			if o.err != nil && in.Kind.IsOutline() {
				return o.err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].kind < out[j].kind })
	for _, o := range out {
		if o.err != nil {
			opts.Logger.Warn("layer omitted", "layer", o.kind, "file", o.name, "err", o.err)
		}
	}
	return out, nil
}

// assembleLayer runs parse and assembly for one input, consulting the
// layer cache first.
func (r *Runner) assembleLayer(ctx context.Context, in LayerInput, opts Options) layerOutcome {
	o := layerOutcome{kind: in.Kind, name: in.Name}
	if o.name == "" {
		o.name = in.Kind.String()
	}
	hooks := observability.Pipeline()
	hooks.OnLayerStart(ctx, in.Kind.String())
	start := time.Now()

	key := r.Keyer.LayerKey(cache.Hash(in.Data), cache.LayerKeyOpts{
		Kind:           in.Kind.String(),
		Epsilon:        opts.Geometry.Epsilon,
		ArcSegments:    opts.Geometry.ArcSegments,
		CircleSegments: opts.Geometry.CircleSegments,
		MaxUnionShapes: opts.Geometry.MaxUnionShapes,
	})
	if !opts.Refresh {
		if e, ok := r.loadLayer(ctx, key); ok {
			o.entry, o.hit = e, true
			o.warnings = prefixed(in.Kind, e.Warnings)
			hooks.OnLayerComplete(ctx, in.Kind.String(), len(e.Shapes), time.Since(start), nil)
			return o
		}
	}

	e, err := assembleSource(in, opts)
	hooks.OnLayerComplete(ctx, in.Kind.String(), shapeCount(e), time.Since(start), err)
	if err != nil {
		o.err = err
		o.warnings = []string{fmt.Sprintf("%s omitted: %s", in.Kind, errors.UserMessage(err))}
		return o
	}
	o.entry = e
	o.warnings = prefixed(in.Kind, e.Warnings)
	opts.Logger.Debug("assembled layer",
		"layer", in.Kind,
		"file", in.Name,
		"shapes", len(e.Shapes),
		"duration", time.Since(start))
	r.storeLayer(ctx, key, e)
	return o
}

// assembleSource parses and assembles one layer without caching.
func assembleSource(in LayerInput, opts Options) (*layerEntry, error) {
	var notes []string
	p := gerber.NewParser(in.Data,
		gerber.WithLayer(in.Kind.String()),
		gerber.WithLogger(opts.Logger),
		gerber.WithWarningHandler(func(w gerber.Warning) { notes = append(notes, w.String()) }))
	res, err := assemble.Assemble(p.Commands(), opts.assembleOptions(in.Kind))
	if err != nil {
		if e, ok := errors.As(err); ok && e.Layer == "" {
			e.WithLayer(in.Kind.String())
		}
		return nil, err
	}
	return &layerEntry{Shapes: res.Shapes, Warnings: append(notes, res.Warnings...)}, nil
}

func (r *Runner) loadLayer(ctx context.Context, key string) (*layerEntry, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "layer")
		return nil, false
	}
	var e layerEntry
	if err := json.Unmarshal(data, &e); err != nil {
		observability.Cache().OnCacheMiss(ctx, "layer")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "layer")
	return &e, true
}

func (r *Runner) storeLayer(ctx context.Context, key string, e *layerEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, r.ttl(cache.TTLLayer)); err != nil {
		r.Logger.Debug("cache write failed", "key", key, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "layer", len(data))
}

func prefixed(k layer.Kind, notes []string) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = k.String() + ": " + n
	}
	return out
}

func shapeCount(e *layerEntry) int {
	if e == nil {
		return 0
	}
	return len(e.Shapes)
}
