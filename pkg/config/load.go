package config

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pcbmesh/pkg/cache"
	"github.com/matzehuels/pcbmesh/pkg/errors"
)

const (
	// AppName names the config and cache directories.
	AppName = "pcbmesh"

	// FileName is the project-local config file looked up in the working
	// directory.
	FileName = "pcbmesh.toml"
)

// Load reads settings on top of the defaults. An explicit path must exist;
// otherwise ./pcbmesh.toml and then Dir()/config.toml are tried, and a
// missing file just yields the defaults. The path actually read is
// returned, or "" when none was found.
func Load(explicit string) (*Config, string, error) {
	cfg := Default()

	path := explicit
	if path == "" {
		path = find()
	} else if _, err := os.Stat(path); err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
	}
	if path == "" {
		return cfg, "", nil
	}
	if err := loadFile(cfg, path); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", errors.Wrap(errors.GetCode(err), err, "config %s", path)
	}
	return cfg, path, nil
}

func find() string {
	candidates := []string{FileName}
	if dir, err := Dir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "config.toml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadFile decodes path into cfg. Keys the settings tree does not know are
// rejected so typos do not pass silently.
func loadFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Dir returns the user config directory ($XDG_CONFIG_HOME/pcbmesh, falling
// back to ~/.config/pcbmesh).
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// CacheDir returns the configured cache directory, or
// $XDG_CACHE_HOME/pcbmesh (~/.cache/pcbmesh) when unset.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// CacheOptions returns the [cache] section as options for cache.Open.
func (c *Config) CacheOptions() (cache.Options, error) {
	opts := cache.Options{
		Backend:       c.Cache.Backend,
		RedisURL:      c.Cache.RedisURL,
		MongoURI:      c.Cache.MongoURI,
		MongoDatabase: c.Cache.MongoDatabase,
	}
	if opts.Backend == CacheFile {
		dir, err := c.CacheDir()
		if err != nil {
			return opts, err
		}
		opts.Dir = dir
	}
	return opts, nil
}
