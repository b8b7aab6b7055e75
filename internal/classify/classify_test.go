package classify

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/discochess/swcache/internal/fetch"
)

func TestClassify(t *testing.T) {
	origin, _ := url.Parse("https://shop.example")
	c := New(origin, "/graphql", "/auth/")

	tests := []struct {
		name string
		url  string
		dest string
		mode string
		want Category
	}{
		{"script by extension", "https://shop.example/_next/static/app.js", "", "", Static},
		{"stylesheet", "https://shop.example/styles/site.css", "", "", Static},
		{"font", "https://shop.example/fonts/inter.woff2", "", "", Static},
		{"favicon", "https://shop.example/favicon.ico", "", "", Static},
		{"script by destination", "https://shop.example/chunk", fetch.DestinationScript, "", Static},
		{"js under api stays static", "https://shop.example/api/widget.js", "", "", Static},
		{"uppercase extension", "https://shop.example/APP.JS", "", "", Static},
		{"image by extension", "https://shop.example/images/p1.webp", "", "", Image},
		{"image by destination", "https://shop.example/img?id=3", fetch.DestinationImage, "", Image},
		{"cross-origin image", "https://cdn.example/p1.png", "", "", Image},
		{"api path", "https://shop.example/api/products", "", "", API},
		{"cross-origin", "https://payments.example/checkout", "", "", API},
		{"configured prefix", "https://shop.example/graphql", "", "", API},
		{"navigation mode", "https://shop.example/products/42", "", fetch.ModeNavigate, Navigation},
		{"no extension", "https://shop.example/cart", "", "", Navigation},
		{"html page", "https://shop.example/offline.html", "", "", Navigation},
		{"root", "https://shop.example/", "", "", Navigation},
		{"manifest", "https://shop.example/manifest.json", "", "", Other},
		{"sitemap", "https://shop.example/sitemap.xml", "", "", Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := fetch.MustRequest(http.MethodGet, tt.url)
			req.Destination = tt.dest
			req.Mode = tt.mode
			if got := c.Classify(req); got != tt.want {
				t.Errorf("Classify(%s) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestClassify_Total(t *testing.T) {
	c := &Classifier{}
	valid := make(map[Category]bool)
	for _, cat := range Categories {
		valid[cat] = true
	}

	paths := []string{"/", "/a", "/a.b", "/a/b.c/d", "/.js", "/api", "/api/", "/x.HTML", "/%20", "/a.tar.gz"}
	dests := []string{"", "script", "style", "font", "image", "document", "audio"}
	modes := []string{"", "navigate", "cors", "no-cors"}

	for _, p := range paths {
		for _, d := range dests {
			for _, m := range modes {
				req := fetch.MustRequest(http.MethodGet, p)
				req.Destination = d
				req.Mode = m
				if got := c.Classify(req); !valid[got] {
					t.Errorf("Classify(%q, %q, %q) = %q, not a known category", p, d, m, got)
				}
			}
		}
	}
}
