// Package config loads pageshot's TOML configuration file.
//
// A missing file is not an error: every field has a default, and values
// present in the file override the defaults section by section.
//
//	[store]
//	backend = "file"
//	ttl = "30m"
//
//	[export]
//	format = "pdf"
//	page_size = "letter"
package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/pdf"
	"github.com/matzehuels/pageshot/pkg/pipeline"
	"github.com/matzehuels/pageshot/pkg/store"
)

const (
	appName  = "pageshot"
	fileName = "config.toml"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

// Duration is a time.Duration that decodes from strings like "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full configuration file.
type Config struct {
	Store   StoreConfig   `toml:"store"`
	Redis   RedisConfig   `toml:"redis"`
	Mongo   MongoConfig   `toml:"mongo"`
	Cache   CacheConfig   `toml:"cache"`
	Capture CaptureConfig `toml:"capture"`
	Export  ExportConfig  `toml:"export"`
	Server  ServerConfig  `toml:"server"`
}

// StoreConfig selects the capture store backend.
type StoreConfig struct {
	Backend string   `toml:"backend"`
	Dir     string   `toml:"dir"`
	TTL     Duration `toml:"ttl"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// CacheConfig selects the export cache backend. Prefix scopes cache keys
// when several deployments share one redis.
type CacheConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Prefix  string `toml:"prefix"`
}

// CaptureConfig describes the simulated viewport used by `capture`.
// A zero ViewportWidth fits the captured page's width.
type CaptureConfig struct {
	SettleDelay    Duration `toml:"settle_delay"`
	ViewportWidth  int      `toml:"viewport_width"`
	ViewportHeight int      `toml:"viewport_height"`
	DPR            float64  `toml:"dpr"`
}

type ExportConfig struct {
	Format   string `toml:"format"`
	Quality  int    `toml:"quality"`
	PageSize string `toml:"page_size"`
	OutDir   string `toml:"out_dir"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendFile,
			TTL:     Duration{store.DefaultTTL},
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   store.DefaultMongoDatabase,
			Collection: store.DefaultMongoCollection,
		},
		Cache: CacheConfig{Backend: BackendFile},
		Capture: CaptureConfig{
			SettleDelay:    Duration{capture.DefaultSettleDelay},
			ViewportHeight: 800,
			DPR:            1,
		},
		Export: ExportConfig{
			Format:   pipeline.DefaultFormat,
			Quality:  pipeline.DefaultQuality,
			PageSize: pipeline.DefaultPageSize,
			OutDir:   ".",
		},
		Server: ServerConfig{Addr: "localhost:8080"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/pageshot/config.toml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, fileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, fileName), nil
}

// Load reads path on top of Default. An empty path means DefaultPath; a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes TOML onto the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and export defaults.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendMongo:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid store backend: %q", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid cache backend: %q", c.Cache.Backend)
	}
	if c.Store.TTL.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "store ttl must be positive, got %s", c.Store.TTL.Duration)
	}
	if c.Capture.ViewportWidth < 0 || c.Capture.ViewportHeight <= 0 {
		return errors.New(errors.ErrCodeInvalidGeometry, "viewport must be positive, got %dx%d",
			c.Capture.ViewportWidth, c.Capture.ViewportHeight)
	}
	if err := capture.ValidateDevicePixelRatio(c.Capture.DPR); err != nil {
		return err
	}
	if err := pipeline.ValidateFormat(c.Export.Format); err != nil {
		return err
	}
	if err := errors.ValidateQuality(c.Export.Quality); err != nil {
		return err
	}
	if _, err := pdf.LookupPageSize(c.Export.PageSize); err != nil {
		return err
	}
	return nil
}

// ExportOptions returns pipeline options seeded from the [export] section.
func (c *Config) ExportOptions() pipeline.Options {
	return pipeline.Options{
		Format:   c.Export.Format,
		Quality:  c.Export.Quality,
		PageSize: c.Export.PageSize,
	}
}
