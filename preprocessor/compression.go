package preprocessor

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Base64 decodes standard base64 input.
type Base64 struct{}

// NewBase64 creates a base64 decoding preprocessor
func NewBase64() *Base64 { return &Base64{} }

// Name returns the preprocessor name
func (p *Base64) Name() string { return "base64" }

// Process decodes data
func (p *Base64) Process(_ uint64, data []byte) ([][]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, bytes.TrimSpace(data))
	if err != nil {
		return nil, err
	}
	return [][]byte{out[:n]}, nil
}

// Gzip decompresses gzip input.
type Gzip struct{}

// NewGzip creates a gzip decompressing preprocessor
func NewGzip() *Gzip { return &Gzip{} }

// Name returns the preprocessor name
func (p *Gzip) Name() string { return "gzip" }

// Process decompresses data
func (p *Gzip) Process(_ uint64, data []byte) ([][]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}

// Zlib decompresses zlib input.
type Zlib struct{}

// NewZlib creates a zlib decompressing preprocessor
func NewZlib() *Zlib { return &Zlib{} }

// Name returns the preprocessor name
func (p *Zlib) Name() string { return "zlib" }

// Process decompresses data
func (p *Zlib) Process(_ uint64, data []byte) ([][]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}

// Zstd decompresses zstd frames.
type Zstd struct {
	dec *zstd.Decoder
}

// NewZstd creates a zstd decompressing preprocessor
func NewZstd() *Zstd { return &Zstd{} }

// Name returns the preprocessor name
func (p *Zstd) Name() string { return "zstd" }

// Process decompresses data
func (p *Zstd) Process(_ uint64, data []byte) ([][]byte, error) {
	if p.dec == nil {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		p.dec = dec
	}
	out, err := p.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}

// Snappy decompresses snappy input, framed or block encoded.
type Snappy struct{}

// NewSnappy creates a snappy decompressing preprocessor
func NewSnappy() *Snappy { return &Snappy{} }

// Name returns the preprocessor name
func (p *Snappy) Name() string { return "snappy" }

// Process decompresses data
func (p *Snappy) Process(_ uint64, data []byte) ([][]byte, error) {
	if bytes.HasPrefix(data, snappyStreamMagic) {
		return readAll(snappy.NewReader(bytes.NewReader(data)))
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}

// LZ4 decompresses lz4 frames.
type LZ4 struct{}

// NewLZ4 creates an lz4 decompressing preprocessor
func NewLZ4() *LZ4 { return &LZ4{} }

// Name returns the preprocessor name
func (p *LZ4) Name() string { return "lz4" }

// Process decompresses data
func (p *LZ4) Process(_ uint64, data []byte) ([][]byte, error) {
	return readAll(lz4.NewReader(bytes.NewReader(data)))
}

var (
	gzipMagic         = []byte{0x1f, 0x8b}
	zstdMagic         = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic          = []byte{0x04, 0x22, 0x4d, 0x18}
	snappyStreamMagic = []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}
)

// Decompress detects the compression format from magic bytes and
// decompresses accordingly. Unrecognised input passes through unchanged.
type Decompress struct {
	zstd *Zstd
}

// NewDecompress creates an auto-detecting decompressing preprocessor
func NewDecompress() *Decompress { return &Decompress{zstd: NewZstd()} }

// Name returns the preprocessor name
func (p *Decompress) Name() string { return "decompress" }

// Process decompresses data
func (p *Decompress) Process(ingestNS uint64, data []byte) ([][]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return NewGzip().Process(ingestNS, data)
	case bytes.HasPrefix(data, zstdMagic):
		return p.zstd.Process(ingestNS, data)
	case bytes.HasPrefix(data, lz4Magic):
		return NewLZ4().Process(ingestNS, data)
	case bytes.HasPrefix(data, snappyStreamMagic):
		return NewSnappy().Process(ingestNS, data)
	case isZlibHeader(data):
		return NewZlib().Process(ingestNS, data)
	default:
		return [][]byte{data}, nil
	}
}

// isZlibHeader checks the CMF/FLG pair from RFC 1950.
func isZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

func readAll(r io.Reader) ([][]byte, error) {
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}
