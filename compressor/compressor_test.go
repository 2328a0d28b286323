package compressor

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func roundTrip(t *testing.T, c encoding.Compressor, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := c.Compress(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := c.Decompress(&buf)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestRegisteredCompressors(t *testing.T) {
	data := []byte(strings.Repeat("10.50 + 5.20 = 15.70;", 64))

	for _, name := range []string{"gzip", Deflate, Brotli} {
		c := encoding.GetCompressor(name)
		require.NotNil(t, c, name)
		assert.Equal(t, name, c.Name())

		// Twice, the second round reuses pooled writers and readers.
		assert.Equal(t, data, roundTrip(t, c, data), name)
		assert.Equal(t, data, roundTrip(t, c, data), name)
	}
}

func TestParseContentEncoding(t *testing.T) {
	cases := map[string]ContentEncoding{
		"":         ContentEncodingPlain,
		"identity": ContentEncodingPlain,
		"none":     ContentEncodingPlain,
		"GZIP":     ContentEncodingGzip,
		"deflate":  ContentEncodingDeflate,
		"br":       ContentEncodingBrotli,
	}
	for name, want := range cases {
		got, err := ParseContentEncoding(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseContentEncoding("lz4")
	assert.True(t, errors.Is(err, ErrUnknownContentEncoding))
}

func TestContentEncodingName(t *testing.T) {
	assert.Equal(t, "gzip", ContentEncodingGzip.Name())
	assert.Equal(t, "br", ContentEncodingBrotli.Name())
	assert.Equal(t, "identity", ContentEncoding(9).Name())
	assert.True(t, ContentEncodingPlain.IsPlain())
	assert.False(t, ContentEncodingDeflate.IsPlain())
}
