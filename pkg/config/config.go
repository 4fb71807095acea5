// Package config holds pcbmesh settings: the board profile used for
// conversions and the runtime settings of the cache, logger and server.
//
// Settings are read from a TOML file and layered as defaults < file < flags.
// Flags are applied by the caller; see [Load] for the file search order.
package config

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pcbmesh/pkg/assemble"
	"github.com/matzehuels/pcbmesh/pkg/cache"
	"github.com/matzehuels/pcbmesh/pkg/compose"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/export"
	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/preview"
)

// Config is the full settings tree.
type Config struct {
	Board    Board             `toml:"board"`
	Geometry Geometry          `toml:"geometry"`
	Export   Export            `toml:"export"`
	Colors   map[string]string `toml:"colors"` // layer kind -> #rrggbb
	Cache    Cache             `toml:"cache"`
	Log      Log               `toml:"log"`
	Server   Server            `toml:"server"`
}

// Board holds layer thicknesses in mm.
type Board struct {
	Thickness       float64 `toml:"thickness"`
	CopperThickness float64 `toml:"copper_thickness"`
	SilkThickness   float64 `toml:"silk_thickness"`
}

// Geometry tunes path assembly.
type Geometry struct {
	Epsilon        float64 `toml:"epsilon"`
	ArcSegments    int     `toml:"arc_segments"`
	CircleSegments int     `toml:"circle_segments"`
	MaxUnionShapes int     `toml:"max_union_shapes"`
}

// Export holds output defaults.
type Export struct {
	Format       string  `toml:"format"`
	Output       string  `toml:"output"`
	Colors       bool    `toml:"colors"`
	PreviewScale float64 `toml:"preview_scale"`
}

// Cache backends.
const (
	CacheNone   = cache.BackendNone
	CacheMemory = cache.BackendMemory
	CacheFile   = cache.BackendFile
	CacheRedis  = cache.BackendRedis
	CacheMongo  = cache.BackendMongo
)

// Cache selects and configures the result cache.
type Cache struct {
	Backend       string        `toml:"backend"`
	Dir           string        `toml:"dir"`
	RedisURL      string        `toml:"redis_url"`
	MongoURI      string        `toml:"mongo_uri"`
	MongoDatabase string        `toml:"mongo_database"`
	TTL           time.Duration `toml:"ttl"`

	// Prefix namespaces every cache key.
	Prefix string `toml:"prefix"`
}

// Log configures the logger and its optional rotating file sink.
type Log struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Server configures the HTTP API.
type Server struct {
	Addr        string        `toml:"addr"`
	MaxUploadMB int           `toml:"max_upload_mb"`
	Timeout     time.Duration `toml:"timeout"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Board: Board{
			Thickness:       compose.DefaultThickness,
			CopperThickness: compose.DefaultCopperThickness,
			SilkThickness:   compose.DefaultSilkThickness,
		},
		Geometry: Geometry{
			Epsilon:        assemble.DefaultEpsilon,
			ArcSegments:    assemble.DefaultArcSegments,
			CircleSegments: assemble.DefaultCircleSegments,
			MaxUnionShapes: assemble.DefaultMaxUnionShapes,
		},
		Export: Export{
			Format:       string(export.FormatOBJ),
			Output:       "output/pcb_model",
			PreviewScale: preview.DefaultScale,
		},
		Cache: Cache{
			Backend:       CacheFile,
			MongoDatabase: AppName,
			TTL:           7 * 24 * time.Hour,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: Server{
			Addr:        ":8080",
			MaxUploadMB: 32,
			Timeout:     60 * time.Second,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := errors.ValidateThickness(c.Board.Thickness); err != nil {
		return err
	}
	if c.Board.CopperThickness <= 0 || c.Board.SilkThickness <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "copper and silkscreen thickness must be positive")
	}
	if c.Geometry.Epsilon <= 0 || c.Geometry.Epsilon > 0.1 {
		return errors.New(errors.ErrCodeInvalidInput, "geometry epsilon must be in (0, 0.1] mm, got %v", c.Geometry.Epsilon)
	}
	if c.Geometry.ArcSegments < 4 || c.Geometry.CircleSegments < 3 {
		return errors.New(errors.ErrCodeInvalidInput, "arc_segments must be >= 4 and circle_segments >= 3")
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return err
	}
	if _, err := c.Palette(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheFile, CacheRedis, CacheMongo:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (want none, memory, file, redis or mongo)", c.Cache.Backend)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "log level")
	}
	return nil
}

// Palette builds the layer palette from the [colors] table. Kinds not
// listed keep their default color.
func (c *Config) Palette() (layer.Palette, error) {
	p := layer.DefaultPalette()
	for name, hex := range c.Colors {
		k, err := layer.ParseKind(name)
		if err != nil {
			return nil, err
		}
		rgb, err := layer.ParseRGB(hex)
		if err != nil {
			return nil, err
		}
		p[k] = rgb
	}
	return p, nil
}

// AssembleOptions returns the geometry settings as assembly options.
func (c *Config) AssembleOptions() assemble.Options {
	return assemble.Options{
		Epsilon:        c.Geometry.Epsilon,
		ArcSegments:    c.Geometry.ArcSegments,
		CircleSegments: c.Geometry.CircleSegments,
		MaxUnionShapes: c.Geometry.MaxUnionShapes,
	}
}

// ComposeOptions returns the board settings as composition options.
func (c *Config) ComposeOptions(colors bool) (compose.Options, error) {
	p, err := c.Palette()
	if err != nil {
		return compose.Options{}, err
	}
	return compose.Options{
		Thickness:       c.Board.Thickness,
		CopperThickness: c.Board.CopperThickness,
		SilkThickness:   c.Board.SilkThickness,
		Colors:          colors,
		Palette:         p,
	}, nil
}
