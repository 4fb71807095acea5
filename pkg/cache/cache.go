// Package cache stores intermediate and final conversion results so that
// re-running a conversion on unchanged Gerber files skips the expensive
// stages.
//
// Two stages are cached, each under a key derived by a [Keyer]:
//
//   - layer: the assembled shapes of one Gerber file, keyed by the hash of
//     its bytes, its layer kind and the geometry settings;
//   - artifact: the exported files of a whole board, keyed by the hash of
//     all layer inputs and every setting that affects the output.
//
// Backends:
//   - [NullCache]: caching disabled
//   - [MemoryCache]: in-process map, used by the HTTP server and tests
//   - [FileCache]: one JSON file per entry, used by the CLI
//   - [RedisCache] and [MongoCache]: shared caches for server deployments
package cache

import (
	"context"
	"time"
)

// Default time-to-live values.
const (
	TTLLayer    = 7 * 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with expiry. Implementations are
// safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss
	// (hit false), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// LayerKeyOpts are the settings that affect an assembled layer.
type LayerKeyOpts struct {
	Kind           string  `json:"kind"`
	Epsilon        float64 `json:"epsilon"`
	ArcSegments    int     `json:"arc_segments"`
	CircleSegments int     `json:"circle_segments"`
	MaxUnionShapes int     `json:"max_union_shapes"`
}

// ArtifactKeyOpts are the settings that affect exported files.
type ArtifactKeyOpts struct {
	Format          string  `json:"format"`
	Stem            string  `json:"stem"`
	Thickness       float64 `json:"thickness"`
	CopperThickness float64 `json:"copper_thickness"`
	SilkThickness   float64 `json:"silk_thickness"`
	Colors          bool    `json:"colors"`
	Palette         string  `json:"palette,omitempty"`
	Geometry        string  `json:"geometry"`
}

// Keyer derives cache keys.
type Keyer interface {
	LayerKey(sourceHash string, opts LayerKeyOpts) string
	ArtifactKey(inputsHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes the key options together with the content hash.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// LayerKey returns "layer:<sha256>".
func (DefaultKeyer) LayerKey(sourceHash string, opts LayerKeyOpts) string {
	return hashKey("layer", sourceHash, opts)
}

// ArtifactKey returns "artifact:<sha256>".
func (DefaultKeyer) ArtifactKey(inputsHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", inputsHash, opts)
}

var _ Keyer = DefaultKeyer{}
