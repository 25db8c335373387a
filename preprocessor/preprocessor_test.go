package preprocessor

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			pp, err := Lookup(name)
			require.NoError(t, err)
			assert.Equal(t, name, pp.Name())
		})
	}

	_, err := Lookup("xz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownArtefact))
}

func TestLines(t *testing.T) {
	t.Run("complete lines", func(t *testing.T) {
		out, err := NewLines().Process(0, []byte("a\nbb\n"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("a"), []byte("bb")}, out)
	})

	t.Run("carries partial lines", func(t *testing.T) {
		p := NewLines()

		out, err := p.Process(0, []byte("snot\nbad"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("snot")}, out)
		assert.Equal(t, 3, p.Pending())

		out, err = p.Process(0, []byte("ger\n"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("badger")}, out)
		assert.Zero(t, p.Pending())
	})

	t.Run("empty line", func(t *testing.T) {
		out, err := NewLines().Process(0, []byte("\n"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{{}}, out)
	})

	t.Run("overlong partial line", func(t *testing.T) {
		p := &Lines{Separator: '\n', MaxLength: 4}
		_, err := p.Process(0, []byte("toolong"))
		require.Error(t, err)
		assert.Zero(t, p.Pending())
	})
}

func frame(payload string) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

func TestLengthPrefixed(t *testing.T) {
	p := NewLengthPrefixed()
	stream := append(frame("one"), frame("three")...)

	out, err := p.Process(0, stream[:9])
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("one")}, out)

	out, err = p.Process(0, stream[9:])
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("three")}, out)

	t.Run("frame too large", func(t *testing.T) {
		p := &LengthPrefixed{MaxLength: 2}
		_, err := p.Process(0, frame("abc"))
		require.Error(t, err)
	})
}

func compressed(t *testing.T, format string, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch format {
	case "gzip":
		w := gzip.NewWriter(&buf)
		_, err := w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "zlib":
		w := zlib.NewWriter(&buf)
		_, err := w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		defer enc.Close()
		return enc.EncodeAll(payload, nil)
	case "snappy":
		return snappy.Encode(nil, payload)
	case "lz4":
		w := lz4.NewWriter(&buf)
		_, err := w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "base64":
		return []byte(base64.StdEncoding.EncodeToString(payload))
	default:
		t.Fatalf("unknown format %s", format)
	}
	return buf.Bytes()
}

func TestDecompressors(t *testing.T) {
	payload := []byte(`{"snot":"badger"}`)

	for _, format := range []string{"gzip", "zlib", "zstd", "snappy", "lz4", "base64"} {
		t.Run(format, func(t *testing.T) {
			pp, err := Lookup(format)
			require.NoError(t, err)

			out, err := pp.Process(0, compressed(t, format, payload))
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, payload, out[0])
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := NewGzip().Process(0, []byte("not gzip"))
		assert.Error(t, err)
	})
}

func TestDecompressAutodetect(t *testing.T) {
	payload := []byte("autodetected payload")
	p := NewDecompress()

	for _, format := range []string{"gzip", "zlib", "zstd", "lz4"} {
		t.Run(format, func(t *testing.T) {
			out, err := p.Process(0, compressed(t, format, payload))
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, payload, out[0])
		})
	}

	t.Run("plain passes through", func(t *testing.T) {
		out, err := p.Process(0, []byte("plain"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("plain")}, out)
	})
}

func TestChain(t *testing.T) {
	t.Run("empty chain passes through", func(t *testing.T) {
		c, err := NewChain()
		require.NoError(t, err)
		out, err := c.Process(0, []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("x")}, out)
	})

	t.Run("stages apply in order", func(t *testing.T) {
		c, err := NewChain("gzip", "lines", "remove-empty")
		require.NoError(t, err)
		assert.Equal(t, 3, c.Len())

		out, err := c.Process(0, compressed(t, "gzip", []byte("a\n\nb\n")))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, out)
	})

	t.Run("failure aborts the message", func(t *testing.T) {
		c, err := NewChain("base64")
		require.NoError(t, err)

		out, err := c.Process(0, []byte("!!not base64!!"))
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, errors.ErrPreprocess))
		assert.True(t, errors.IsInvalid(err))

		out, err = c.Process(0, compressed(t, "base64", []byte("ok")))
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("ok")}, out)
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := NewChain("lines", "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfig))
	})
}
