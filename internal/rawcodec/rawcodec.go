// Package rawcodec compresses the host-side copy of decoded frame data that
// the cache retains for re-binding after a GPU context loss.
package rawcodec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Codec encodes raw frame bytes for retention and decodes them back.
type Codec interface {
	// Encode returns the retained representation of raw and whether it was
	// transformed. The result may alias raw when transformed is false.
	Encode(raw []byte) (stored []byte, transformed bool)

	// Decode returns the original bytes for a buffer Encode transformed.
	Decode(stored []byte) ([]byte, error)
}

// Noop retains raw bytes as-is.
type Noop struct{}

func (Noop) Encode(raw []byte) ([]byte, bool)     { return raw, false }
func (Noop) Decode(stored []byte) ([]byte, error) { return stored, nil }

// Zstd retains raw bytes zstd-compressed. Decoded diagnostic frames are
// typically highly compressible (large uniform regions), so this trades a
// cheap inflate on re-bind for a much smaller host footprint.
type Zstd struct{}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses raw. If compression does not pay for itself the raw
// bytes are retained unchanged and transformed is false.
func (Zstd) Encode(raw []byte) ([]byte, bool) {
	if len(raw) == 0 {
		return raw, false
	}

	enc := getEncoder()
	defer zstdEncoderPool.Put(enc)

	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	if len(compressed) >= len(raw) {
		return raw, false
	}
	return compressed, true
}

// Decode inflates a buffer Encode compressed.
func (Zstd) Decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return stored, nil
	}

	dec := getDecoder()
	defer zstdDecoderPool.Put(dec)

	out, err := dec.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("rawcodec: inflate retained frame: %w", err)
	}
	return out, nil
}
