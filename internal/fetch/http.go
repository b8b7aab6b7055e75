package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("fetch: response body too large")

// Compile-time check that HTTPNetwork implements Network.
var _ Network = (*HTTPNetwork)(nil)

// HTTPNetwork fetches requests over HTTP.
type HTTPNetwork struct {
	client       *http.Client
	origin       *url.URL
	maxBodyBytes int64
	logger       *zap.Logger
}

// HTTPOption configures an HTTPNetwork.
type HTTPOption func(*HTTPNetwork)

// WithHTTPClient replaces the underlying client. Its transport is used as is.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(n *HTTPNetwork) { n.client = c }
}

// WithMaxBodyBytes bounds how much of a response body is buffered.
// Zero disables the limit.
func WithMaxBodyBytes(max int64) HTTPOption {
	return func(n *HTTPNetwork) { n.maxBodyBytes = max }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(n *HTTPNetwork) { n.logger = l }
}

// NewHTTPNetwork creates a network that resolves relative request URLs
// against origin and classifies responses as basic or cors by comparing
// their URL with origin. The default client is traced with OpenTelemetry.
func NewHTTPNetwork(origin *url.URL, opts ...HTTPOption) *HTTPNetwork {
	n := &HTTPNetwork{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		origin:       origin,
		maxBodyBytes: 10 << 20,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Fetch performs the request and buffers the response.
func (n *HTTPNetwork) Fetch(ctx context.Context, req *Request) (*Response, error) {
	target := n.origin.ResolveReference(req.URL)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, vv := range req.Header {
		for _, v := range vv {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := n.client.Do(httpReq)
	if err != nil {
		n.logger.Debug("network fetch failed", zap.String("url", target.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if n.maxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, n.maxBodyBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	if n.maxBodyBytes > 0 && int64(len(data)) > n.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	header := resp.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       data,
		Type:       n.responseType(resp.Request.URL),
		URL:        resp.Request.URL.String(),
	}, nil
}

func (n *HTTPNetwork) responseType(u *url.URL) ResponseType {
	if SameOrigin(u, n.origin) {
		return TypeBasic
	}
	return TypeCORS
}

// SameOrigin reports whether a and b share scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Scheme == b.Scheme && a.Host == b.Host
}
