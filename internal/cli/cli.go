// Package cli implements the pageshot command-line interface.
//
// # Commands
//
//   - capture: take a simulated full-page capture of an image or the demo page
//   - stitch: compose viewport tiles into one image
//   - convert: re-encode an image as png, jpg or a paginated pdf
//   - export: write stored captures to files (interactive picker without ids)
//   - captures: list, show, delete and clean up stored captures
//   - demo: store and save the demo capture
//   - serve: run the HTTP API
//   - cache: manage the export cache
//
// # Configuration
//
// Settings come from a TOML file (see internal/config), located with
// --config or at $XDG_CONFIG_HOME/pageshot/config.toml. All commands support
// --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pageshot/internal/config"
	"github.com/matzehuels/pageshot/pkg/buildinfo"
	"github.com/matzehuels/pageshot/pkg/cache"
	"github.com/matzehuels/pageshot/pkg/observability"
	"github.com/matzehuels/pageshot/pkg/pipeline"
	"github.com/matzehuels/pageshot/pkg/sink"
	"github.com/matzehuels/pageshot/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pageshot"

	// batchLimit bounds concurrent exports.
	batchLimit = 4
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config

	// clipboard receives export --clipboard. Nil uses the system clipboard.
	clipboard sink.Sink
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "pageshot captures full web pages as images and PDFs",
		Long:         `pageshot stitches scrolled viewport captures into one seamless image and exports it as PNG, JPEG or a paginated PDF.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.Logger.GetLevel() <= log.DebugLevel {
				observability.NewLogHooks(c.Logger).Register()
			}
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/pageshot/config.toml)")

	root.AddCommand(c.captureCommand())
	root.AddCommand(c.stitchCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.capturesCommand())
	root.AddCommand(c.demoCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.Logger.Debug("loaded config", "path", c.configPath, "store", cfg.Store.Backend, "cache", cfg.Cache.Backend)
	return nil
}

// config returns the loaded configuration, or the defaults before loading.
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		return config.Default()
	}
	return c.cfg
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cfg := c.config()
	if noCache {
		return pipeline.NewRunner(cache.NewNullCache(), nil, c.Logger), nil
	}
	ch, err := c.newCache(ctx)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), cfg.Cache.Prefix)
	return pipeline.NewRunner(ch, keyer, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	cfg := c.config()
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		return cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	dir, err := c.fileCacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Store Factory
// =============================================================================

// newStore opens the configured capture store and drops expired records.
func (c *CLI) newStore(ctx context.Context) (store.Store, error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := st.Cleanup(ctx); err != nil {
		c.Logger.Warn("cleanup failed", "err", err)
	} else if n > 0 {
		c.Logger.Debug("removed expired captures", "count", n)
	}
	return st, nil
}

func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg := c.config()
	opts := []store.Option{store.WithTTL(cfg.Store.TTL.Duration), store.WithLogger(c.Logger)}

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		st = store.NewMemoryStore(opts...)
	case config.BackendRedis:
		st, err = store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, opts...)
	case config.BackendMongo:
		st, err = store.NewMongoStore(ctx, store.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		}, opts...)
	default:
		st, err = store.NewFileStore(cfg.Store.Dir, opts...)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// frameOptions returns the simulated viewport from the [capture] section.
func (c *CLI) frameOptions() pipeline.FrameOptions {
	cfg := c.config().Capture
	return pipeline.FrameOptions{
		ViewportWidth:    cfg.ViewportWidth,
		ViewportHeight:   cfg.ViewportHeight,
		DevicePixelRatio: cfg.DPR,
		SettleDelay:      cfg.SettleDelay.Duration,
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pageshot/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
