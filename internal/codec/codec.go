// Package codec compresses cached response bodies before they are persisted.
package codec

import (
	"bytes"
	"fmt"
	"io"
)

// Codec provides compression and decompression functionality.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Name identifies the codec in config and in persisted rows
	// ("zstd", "gzip", "none").
	Name() string
}

// ByName returns the codec registered under name.
// An empty name selects zstd.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "zstd":
		return NewZstd(), nil
	case "gzip":
		return NewGzip(), nil
	case "none":
		return NewNone(), nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// Encode compresses data in one shot.
func Encode(c Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flushing compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses data in one shot.
func Decode(c Codec, data []byte) ([]byte, error) {
	r, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}
