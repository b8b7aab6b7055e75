// Package fetch models the requests and responses that flow through the worker
// and the network they are fetched from.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNetwork indicates the network could not produce a response at all
// (connection refused, DNS failure, timeout). HTTP error statuses are not
// network errors.
var ErrNetwork = errors.New("fetch: network error")

// Request modes and destinations, mirroring the browser's Request.mode and
// Request.destination.
const (
	ModeNavigate = "navigate"
	ModeCORS     = "cors"
	ModeNoCORS   = "no-cors"

	DestinationDocument = "document"
	DestinationScript   = "script"
	DestinationStyle    = "style"
	DestinationFont     = "font"
	DestinationImage    = "image"
)

// Request is an outgoing request intercepted by the worker.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte

	// Destination is the declared resource type ("script", "image", ...).
	// Empty when unknown.
	Destination string

	// Mode is the request mode; "navigate" for top-level page loads.
	Mode string
}

// NewRequest builds a GET request for rawURL.
func NewRequest(method, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{Method: method, URL: u, Header: make(http.Header)}, nil
}

// MustRequest is like NewRequest but panics on a malformed URL.
// Intended for static route tables and tests.
func MustRequest(method, rawURL string) *Request {
	r, err := NewRequest(method, rawURL)
	if err != nil {
		panic(err)
	}
	return r
}

// Key identifies the request in a cache store.
func (r *Request) Key() string {
	return r.Method + " " + r.URL.String()
}

// IsNavigation reports whether the request is a top-level page navigation.
func (r *Request) IsNavigation() bool {
	return r.Mode == ModeNavigate
}

// WithURL returns a copy of r pointed at a different URL, keeping method and mode.
func (r *Request) WithURL(u *url.URL) *Request {
	c := *r
	c.URL = u
	return &c
}

// FromHTTP converts an inbound proxied request into a worker request aimed at
// origin. Fetch metadata headers supply destination and mode.
func FromHTTP(r *http.Request, origin *url.URL, body []byte) *Request {
	target := *origin
	target.Path = r.URL.Path
	target.RawPath = r.URL.RawPath
	target.RawQuery = r.URL.RawQuery

	header := r.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}

	return &Request{
		Method:      r.Method,
		URL:         &target,
		Header:      header,
		Body:        body,
		Destination: r.Header.Get("Sec-Fetch-Dest"),
		Mode:        r.Header.Get("Sec-Fetch-Mode"),
	}
}

// Network fetches requests from the origin.
type Network interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// NetworkFunc adapts a function to the Network interface.
type NetworkFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch calls f.
func (f NetworkFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Clock returns the current time.
type Clock func() time.Time

var hopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive",
	"Proxy-Authenticate", "Proxy-Authorization", "TE",
	"Trailer", "Transfer-Encoding", "Upgrade",
}
