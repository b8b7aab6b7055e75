package swcache

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/syncqueue"
)

// Base names of the worker's cache stores. The configured version is
// appended to each.
const (
	StaticStore  = "static"
	DynamicStore = "dynamic"
	APIStore     = "api"
	ImageStore   = "images"
)

// StoreLimits bounds one cache store.
type StoreLimits struct {
	MaxAge     time.Duration
	MaxEntries int
}

// Config describes a worker release.
type Config struct {
	// Version is embedded in every store name. Bumping it makes Activate
	// purge the stores of older releases.
	Version string

	// Origin is the storefront the worker fronts.
	Origin *url.URL

	// Precache lists the paths fetched into the static store on install.
	Precache []string

	// OfflinePage answers navigations when network and cache both fail.
	OfflinePage string

	// ImagePlaceholder answers image requests in the same situation, when
	// it has been cached.
	ImagePlaceholder string

	// APIPrefixes are path prefixes, besides /api/, served by the backend.
	APIPrefixes []string

	// SyncRoutes bind sync tags to pending queues and replay endpoints.
	SyncRoutes []syncqueue.Route

	// SkipWaiting activates a freshly installed worker immediately instead
	// of waiting for a SKIP_WAITING message.
	SkipWaiting bool

	Static  StoreLimits
	Dynamic StoreLimits
	API     StoreLimits
	Images  StoreLimits
}

// DefaultConfig returns the storefront's release configuration for origin.
func DefaultConfig(origin *url.URL) Config {
	return Config{
		Version: "v1",
		Origin:  origin,
		Precache: []string{
			"/",
			"/offline",
			"/manifest.json",
			"/icons/icon-192x192.png",
			"/icons/icon-512x512.png",
		},
		OfflinePage:      "/offline",
		ImagePlaceholder: "/images/placeholder.svg",
		SyncRoutes:       syncqueue.DefaultRoutes(),
		SkipWaiting:      true,
		Static:           StoreLimits{MaxAge: 30 * 24 * time.Hour, MaxEntries: 100},
		Dynamic:          StoreLimits{MaxAge: 7 * 24 * time.Hour, MaxEntries: 50},
		API:              StoreLimits{MaxAge: 5 * time.Minute, MaxEntries: 100},
		Images:           StoreLimits{MaxAge: 30 * 24 * time.Hour, MaxEntries: 200},
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.Origin == nil || c.Origin.Scheme == "" || c.Origin.Host == "" {
		errs = append(errs, ErrNoOrigin)
	}
	for _, l := range []StoreLimits{c.Static, c.Dynamic, c.API, c.Images} {
		if l.MaxAge < 0 || l.MaxEntries < 0 {
			errs = append(errs, fmt.Errorf("store limits must not be negative: %+v", l))
		}
	}
	seen := make(map[string]bool)
	for _, r := range c.SyncRoutes {
		if r.Tag == "" || r.Queue == "" || r.Endpoint == "" {
			errs = append(errs, fmt.Errorf("incomplete sync route %+v", r))
		}
		if seen[r.Tag] {
			errs = append(errs, fmt.Errorf("duplicate sync tag %q", r.Tag))
		}
		seen[r.Tag] = true
	}
	return errors.Join(errs...)
}

// StaticConfig returns the static store of this release.
func (c Config) StaticConfig() cachestore.Config { return c.store(StaticStore, c.Static) }

// DynamicConfig returns the page store of this release.
func (c Config) DynamicConfig() cachestore.Config { return c.store(DynamicStore, c.Dynamic) }

// APIConfig returns the API response store of this release.
func (c Config) APIConfig() cachestore.Config { return c.store(APIStore, c.API) }

// ImageConfig returns the image store of this release.
func (c Config) ImageConfig() cachestore.Config { return c.store(ImageStore, c.Images) }

// StoreNames returns the versioned names of every store this release owns.
func (c Config) StoreNames() []string {
	return []string{
		c.StaticConfig().Name,
		c.DynamicConfig().Name,
		c.APIConfig().Name,
		c.ImageConfig().Name,
	}
}

func (c Config) store(base string, l StoreLimits) cachestore.Config {
	return cachestore.Config{
		Name:       cachestore.VersionedName(base, c.Version),
		MaxAge:     l.MaxAge,
		MaxEntries: l.MaxEntries,
	}
}
