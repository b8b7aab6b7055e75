package codec

import (
	"compress/gzip"
	"io"
)

// Compile-time check that Gzip implements Codec.
var _ Codec = (*Gzip)(nil)

// Gzip implements gzip compression.
type Gzip struct{}

// NewGzip returns a new gzip codec.
func NewGzip() *Gzip {
	return &Gzip{}
}

// Reader wraps r to decompress gzip data.
func (c *Gzip) Reader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// Writer wraps w to compress data with gzip.
func (c *Gzip) Writer(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

// Name returns "gzip".
func (c *Gzip) Name() string { return "gzip" }
