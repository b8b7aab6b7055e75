package codec

import "io"

// Compile-time check that None implements Codec.
var _ Codec = (*None)(nil)

// None stores bodies uncompressed.
type None struct{}

// NewNone returns a pass-through codec.
func NewNone() *None {
	return &None{}
}

// Reader returns r wrapped as a ReadCloser.
func (c *None) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Writer returns w wrapped as a WriteCloser.
func (c *None) Writer(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// Name returns "none".
func (c *None) Name() string { return "none" }

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
