// Package cli implements the pcbmesh command-line interface.
//
// # Commands
//
//   - convert: Build a 3D model from a board's Gerber layers
//   - analyze: Inspect Gerber files without building a model (alias: info)
//   - layers: Show how the files of a directory are classified
//   - preview: Render a top or bottom PNG of the composed board
//   - serve: Run the HTTP API
//   - cache: Manage the result cache
//
// # Configuration
//
// Settings come from pcbmesh.toml (see package config); flags given on the
// command line override the file. --log-file adds a rotating log file next
// to the terminal output.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pcbmesh/pkg/buildinfo"
	"github.com/matzehuels/pcbmesh/pkg/cache"
	"github.com/matzehuels/pcbmesh/pkg/config"
	"github.com/matzehuels/pcbmesh/pkg/export"
	"github.com/matzehuels/pcbmesh/pkg/pipeline"
)

const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogError = log.ErrorLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *config.Config

	// Out receives command output; logs go to the logger's writer.
	Out io.Writer

	stderr     io.Writer
	configPath string
	logFile    string
	verbose    bool
	quiet      bool
	sink       io.Closer
}

// New creates a CLI logging to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
		Out:    os.Stdout,
		stderr: w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pcbmesh turns Gerber layers into 3D board models",
		Long: `pcbmesh reads the Gerber files of a two-layer PCB (board outline, copper
and silkscreen), stacks them into a board and writes a triangle mesh as OBJ,
STL or USDZ.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.Close()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.BoolVarP(&c.quiet, "quiet", "q", false, "only log errors")
	pf.StringVar(&c.configPath, "config", "", "config file (default ./pcbmesh.toml, then the user config dir)")
	pf.StringVar(&c.logFile, "log-file", "", "also write logs to this file, rotated by size")

	root.AddCommand(c.convertCommand())
	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.layersCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the config and configures logging before any command runs.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, path, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg

	level, _ := log.ParseLevel(cfg.Log.Level)
	switch {
	case c.verbose:
		level = LogDebug
	case c.quiet:
		level = LogError
	}
	if c.logFile != "" {
		cfg.Log.File = c.logFile
	}
	if cfg.Log.File != "" {
		w, closer := openLogSink(c.stderr, cfg.Log)
		c.Logger = newLogger(w, level)
		c.sink = closer
	}
	c.SetLogLevel(level)
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

// Close releases the log file sink.
func (c *CLI) Close() error {
	if c.sink == nil {
		return nil
	}
	err := c.sink.Close()
	c.sink = nil
	return err
}

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	opts, err := c.Config.CacheOptions()
	if err != nil {
		return nil, err
	}
	if noCache {
		opts.Backend = cache.BackendNone
	}
	ch, err := cache.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", opts.Backend, err)
	}
	var keyer cache.Keyer
	if p := c.Config.Cache.Prefix; p != "" {
		keyer = cache.NewScopedKeyer(nil, p)
	}
	r := pipeline.NewRunner(ch, keyer, c.Logger)
	r.TTL = c.Config.Cache.TTL
	return r, nil
}

// baseOptions returns pipeline options from the config.
func (c *CLI) baseOptions() (pipeline.Options, error) {
	palette, err := c.Config.Palette()
	if err != nil {
		return pipeline.Options{}, err
	}
	format, err := export.ParseFormat(c.Config.Export.Format)
	if err != nil {
		return pipeline.Options{}, err
	}
	cfg := c.Config
	return pipeline.Options{
		Output:          cfg.Export.Output,
		Thickness:       cfg.Board.Thickness,
		CopperThickness: cfg.Board.CopperThickness,
		SilkThickness:   cfg.Board.SilkThickness,
		Format:          format,
		Colors:          cfg.Export.Colors,
		Palette:         palette,
		Geometry: pipeline.Geometry{
			Epsilon:        cfg.Geometry.Epsilon,
			ArcSegments:    cfg.Geometry.ArcSegments,
			CircleSegments: cfg.Geometry.CircleSegments,
			MaxUnionShapes: cfg.Geometry.MaxUnionShapes,
		},
		Logger: c.Logger,
	}, nil
}
