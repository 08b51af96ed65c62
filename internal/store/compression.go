// internal/store/compression.go
package store

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstd frame magic, used to recognize compressed content on the way out.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// compressMinSize is the smallest payload worth compressing. Below this
// the frame overhead usually outweighs the savings.
const compressMinSize = 64

// compressor wraps a zstd encoder/decoder pair. EncodeAll and DecodeAll
// are safe for concurrent use, so one pair serves the whole store.
type compressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCompressor(level int) (*compressor, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	return &compressor{enc: enc, dec: dec}, nil
}

// compress returns the zstd frame for content, or content unchanged when
// it is too small to be worth it.
func (c *compressor) compress(content []byte) []byte {
	if len(content) < compressMinSize {
		return content
	}
	return c.enc.EncodeAll(content, nil)
}

// decompress reverses compress. Content without the zstd magic is
// returned as-is.
func (c *compressor) decompress(content []byte) ([]byte, error) {
	if len(content) >= 4 && bytes.Equal(content[:4], zstdMagic) {
		out, err := c.dec.DecodeAll(content, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing content: %w", err)
		}
		return out, nil
	}

	// Content wasn't compressed
	return content, nil
}

func (c *compressor) close() {
	c.enc.Close()
	c.dec.Close()
}
