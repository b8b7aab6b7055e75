// Package config loads swcache settings from a YAML file and SWCACHE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/discochess/swcache"
	"github.com/discochess/swcache/internal/syncqueue"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Store holds the limits of one cache store.
type Store struct {
	MaxAge     time.Duration `mapstructure:"max_age"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// Route binds a sync tag to a queue and endpoint.
type Route struct {
	Tag      string `mapstructure:"tag"`
	Queue    string `mapstructure:"queue"`
	Endpoint string `mapstructure:"endpoint"`
}

// Settings is the on-disk configuration.
type Settings struct {
	Origin       string `mapstructure:"origin"`
	Listen       string `mapstructure:"listen"`
	DataDir      string `mapstructure:"data_dir"`
	Storage      string `mapstructure:"storage"`
	Codec        string `mapstructure:"codec"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`

	Version          string   `mapstructure:"version"`
	Precache         []string `mapstructure:"precache"`
	OfflinePage      string   `mapstructure:"offline_page"`
	ImagePlaceholder string   `mapstructure:"image_placeholder"`
	APIPrefixes      []string `mapstructure:"api_prefixes"`
	SkipWaiting      bool     `mapstructure:"skip_waiting"`

	Stores struct {
		Static  Store `mapstructure:"static"`
		Dynamic Store `mapstructure:"dynamic"`
		API     Store `mapstructure:"api"`
		Images  Store `mapstructure:"images"`
	} `mapstructure:"stores"`

	Sync []Route `mapstructure:"sync"`
}

// Load reads settings. An explicit path must exist; without one the file
// swcache.yaml is looked up in the working directory, $HOME/.swcache and
// /etc/swcache, and its absence is not an error.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("swcache")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.swcache")
		v.AddConfigPath("/etc/swcache/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if len(s.Sync) == 0 {
		for _, r := range syncqueue.DefaultRoutes() {
			s.Sync = append(s.Sync, Route(r))
		}
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	d := swcache.DefaultConfig(nil)

	v.SetDefault("origin", "http://localhost:3000")
	v.SetDefault("listen", ":8081")
	v.SetDefault("data_dir", "./swcache-data")
	v.SetDefault("storage", StorageSQLite)
	v.SetDefault("codec", "zstd")
	v.SetDefault("max_body_bytes", 10<<20)

	v.SetDefault("version", d.Version)
	v.SetDefault("precache", d.Precache)
	v.SetDefault("offline_page", d.OfflinePage)
	v.SetDefault("image_placeholder", d.ImagePlaceholder)
	v.SetDefault("api_prefixes", []string{})
	v.SetDefault("skip_waiting", d.SkipWaiting)

	for name, l := range map[string]swcache.StoreLimits{
		"static":  d.Static,
		"dynamic": d.Dynamic,
		"api":     d.API,
		"images":  d.Images,
	} {
		v.SetDefault("stores."+name+".max_age", l.MaxAge)
		v.SetDefault("stores."+name+".max_entries", l.MaxEntries)
	}
}

// WorkerConfig converts the settings into a worker release configuration.
func (s *Settings) WorkerConfig() (swcache.Config, error) {
	origin, err := url.Parse(s.Origin)
	if err != nil {
		return swcache.Config{}, fmt.Errorf("parsing origin %q: %w", s.Origin, err)
	}

	cfg := swcache.DefaultConfig(origin)
	cfg.Version = s.Version
	cfg.Precache = s.Precache
	cfg.OfflinePage = s.OfflinePage
	cfg.ImagePlaceholder = s.ImagePlaceholder
	cfg.APIPrefixes = s.APIPrefixes
	cfg.SkipWaiting = s.SkipWaiting
	cfg.Static = swcache.StoreLimits(s.Stores.Static)
	cfg.Dynamic = swcache.StoreLimits(s.Stores.Dynamic)
	cfg.API = swcache.StoreLimits(s.Stores.API)
	cfg.Images = swcache.StoreLimits(s.Stores.Images)

	cfg.SyncRoutes = make([]syncqueue.Route, len(s.Sync))
	for i, r := range s.Sync {
		cfg.SyncRoutes[i] = syncqueue.Route(r)
	}
	return cfg, cfg.Validate()
}
