package observability

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Counters is an in-memory implementation of every hook interface. It
// keeps monotonically increasing counters and summed durations, and can
// write them in the Prometheus text exposition format.
type Counters struct {
	mu     sync.Mutex
	counts map[string]float64
}

// NewCounters returns an empty counter set.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]float64)}
}

func (c *Counters) add(name string, v float64, labels ...string) {
	key := name
	if len(labels) > 0 {
		key += "{"
		for i := 0; i+1 < len(labels); i += 2 {
			if i > 0 {
				key += ","
			}
			key += labels[i] + "=" + strconv.Quote(labels[i+1])
		}
		key += "}"
	}
	c.mu.Lock()
	c.counts[key] += v
	c.mu.Unlock()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Counters) OnLayerStart(context.Context, string) {}

func (c *Counters) OnLayerComplete(_ context.Context, kind string, shapes int, d time.Duration, err error) {
	c.add("pcbmesh_layers_total", 1, "kind", kind, "result", result(err))
	c.add("pcbmesh_layer_shapes_total", float64(shapes), "kind", kind)
	c.add("pcbmesh_layer_seconds_total", d.Seconds(), "kind", kind)
}

func (c *Counters) OnMeshComplete(_ context.Context, vertices, faces int, d time.Duration) {
	c.add("pcbmesh_meshes_total", 1)
	c.add("pcbmesh_mesh_faces_total", float64(faces))
	c.add("pcbmesh_mesh_seconds_total", d.Seconds())
}

func (c *Counters) OnExportComplete(_ context.Context, format string, n int, d time.Duration, err error) {
	c.add("pcbmesh_exports_total", 1, "format", format, "result", result(err))
	c.add("pcbmesh_export_bytes_total", float64(n), "format", format)
	c.add("pcbmesh_export_seconds_total", d.Seconds(), "format", format)
}

func (c *Counters) OnCacheHit(_ context.Context, keyType string) {
	c.add("pcbmesh_cache_hits_total", 1, "type", keyType)
}

func (c *Counters) OnCacheMiss(_ context.Context, keyType string) {
	c.add("pcbmesh_cache_misses_total", 1, "type", keyType)
}

func (c *Counters) OnCacheSet(_ context.Context, keyType string, size int) {
	c.add("pcbmesh_cache_set_bytes_total", float64(size), "type", keyType)
}

func (c *Counters) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	c.add("pcbmesh_http_requests_total", 1, "method", method, "route", route, "code", strconv.Itoa(status))
	c.add("pcbmesh_http_request_seconds_total", d.Seconds(), "method", method, "route", route)
}

// Get returns the value of one series, e.g.
// `pcbmesh_cache_hits_total{type="layer"}`.
func (c *Counters) Get(series string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[series]
}

// Snapshot returns a copy of every series.
func (c *Counters) Snapshot() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// WriteText writes every series sorted by name, one per line.
func (c *Counters) WriteText(w io.Writer) error {
	snap := c.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s %s\n", k, strconv.FormatFloat(snap[k], 'g', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ PipelineHooks = (*Counters)(nil)
	_ CacheHooks    = (*Counters)(nil)
	_ HTTPHooks     = (*Counters)(nil)
)
