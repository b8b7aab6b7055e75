// Package classify maps intercepted requests onto the cache route that
// answers them.
package classify

import (
	"net/url"
	"path"
	"strings"

	"github.com/discochess/swcache/internal/fetch"
)

// Category is the kind of resource a request targets.
type Category string

const (
	Static     Category = "static"
	Image      Category = "image"
	API        Category = "api"
	Navigation Category = "navigation"
	Other      Category = "other"
)

// Categories lists every category in evaluation order.
var Categories = []Category{Static, Image, API, Navigation, Other}

var staticExtensions = map[string]bool{
	".js": true, ".mjs": true, ".css": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".ico": true,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".avif": true, ".svg": true, ".bmp": true,
}

// Classifier assigns a Category to requests. The zero value treats every
// host as same-origin and only /api/ as an API prefix.
type Classifier struct {
	// Origin is the storefront origin; requests to other hosts are API calls.
	Origin *url.URL

	// APIPrefixes are additional path prefixes served by backend endpoints.
	APIPrefixes []string
}

// New returns a Classifier for origin.
func New(origin *url.URL, apiPrefixes ...string) *Classifier {
	return &Classifier{Origin: origin, APIPrefixes: apiPrefixes}
}

// Classify returns exactly one category for req. Static and image checks run
// first so a crafted path like /api/app.js is still a static asset.
func (c *Classifier) Classify(req *fetch.Request) Category {
	p := req.URL.Path
	ext := strings.ToLower(path.Ext(p))

	switch {
	case isStatic(req.Destination, ext):
		return Static
	case req.Destination == fetch.DestinationImage || imageExtensions[ext]:
		return Image
	case c.isAPI(req.URL):
		return API
	case req.IsNavigation() || ext == "" || ext == ".html" || ext == ".htm":
		return Navigation
	default:
		return Other
	}
}

func isStatic(dest, ext string) bool {
	switch dest {
	case fetch.DestinationScript, fetch.DestinationStyle, fetch.DestinationFont:
		return true
	}
	return staticExtensions[ext]
}

func (c *Classifier) isAPI(u *url.URL) bool {
	if strings.HasPrefix(u.Path, "/api/") || u.Path == "/api" {
		return true
	}
	if c.Origin != nil && u.Host != "" && u.Host != c.Origin.Host {
		return true
	}
	for _, prefix := range c.APIPrefixes {
		if prefix != "" && strings.HasPrefix(u.Path, prefix) {
			return true
		}
	}
	return false
}
