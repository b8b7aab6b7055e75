package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/swcache"
	"github.com/discochess/swcache/fx/sqliteswcachefx"
	"github.com/discochess/swcache/internal/cachestore/memory"
	"github.com/discochess/swcache/internal/cachestore/sqlitestore"
	"github.com/discochess/swcache/internal/codec"
	"github.com/discochess/swcache/internal/config"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/syncqueue/memqueue"
	"github.com/discochess/swcache/internal/syncqueue/sqlitequeue"
)

var (
	// Global flags.
	configFile string
	dataDir    string
	origin     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "swcache",
	Short: "Offline-first cache layer for the storefront",
	Long: `swcache runs the storefront's service-worker cache layer as a caching
proxy: static assets and images cache-first, API calls network-first, pages
stale-while-revalidate, with mutations made while offline queued for
background sync.

Examples:
  # Run the proxy in front of a local storefront
  swcache serve --origin http://localhost:3000

  # Precache the current release into the data directory
  swcache precache

  # Replay queued cart updates
  swcache sync cart-sync

  # Show stores and pending queues
  swcache stats`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: swcache.yaml in ., $HOME/.swcache, /etc/swcache)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory holding the cache database")
	rootCmd.PersistentFlags().StringVar(&origin, "origin", "", "storefront origin URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// loadSettings reads the config file and applies flag overrides.
func loadSettings() (*config.Settings, error) {
	s, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		s.DataDir = dataDir
	}
	if origin != "" {
		s.Origin = origin
	}
	return s, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openWorker builds a worker over the configured storage for one-shot
// commands. The caller must Close it.
func openWorker(ctx context.Context, s *config.Settings, logger *zap.Logger) (*swcache.Worker, error) {
	cfg, err := s.WorkerConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	u, _ := url.Parse(s.Origin)

	opts := []swcache.Option{
		swcache.WithConfig(cfg),
		swcache.WithNetwork(fetch.NewHTTPNetwork(u,
			fetch.WithMaxBodyBytes(s.MaxBodyBytes),
			fetch.WithHTTPLogger(logger.Named("network")),
		)),
		swcache.WithLogger(logger),
	}

	switch s.Storage {
	case config.StorageMemory:
		opts = append(opts, swcache.WithStorage(memory.New(0)), swcache.WithQueue(memqueue.New()))
	case config.StorageSQLite:
		c, err := codec.ByName(s.Codec)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		path := filepath.Join(s.DataDir, sqliteswcachefx.DatabaseFile)
		storage, err := sqlitestore.Open(ctx, path, c)
		if err != nil {
			return nil, fmt.Errorf("opening cache database: %w", err)
		}
		queue, err := sqlitequeue.Open(ctx, path)
		if err != nil {
			storage.Close()
			return nil, fmt.Errorf("opening sync queue: %w", err)
		}
		opts = append(opts, swcache.WithStorage(storage), swcache.WithQueue(queue))
	default:
		return nil, fmt.Errorf("unknown storage %q", s.Storage)
	}

	return swcache.New(opts...)
}
