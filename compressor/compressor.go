// Package compressor provides pooled gzip, deflate and brotli compressors
// and registers them with gRPC.
package compressor

import (
	"compress/zlib"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/encoding/gzip"
)

type ContentEncoding int

const (
	ContentEncodingGzip    ContentEncoding = 0
	ContentEncodingDeflate ContentEncoding = 1
	ContentEncodingBrotli  ContentEncoding = 2
	ContentEncodingPlain   ContentEncoding = 3
)

const (
	// Deflate is the gRPC name of the zlib compressor.
	Deflate = "deflate"
	// Brotli is the gRPC name of the brotli compressor.
	Brotli = "br"
	// Identity disables compression.
	Identity = "identity"
)

var (
	ErrUnknownContentEncoding = errors.New("[CALC] unknown content encoding")
)

var encodingNames = map[ContentEncoding]string{
	ContentEncodingGzip:    gzip.Name,
	ContentEncodingDeflate: Deflate,
	ContentEncodingBrotli:  Brotli,
	ContentEncodingPlain:   Identity,
}

// ParseContentEncoding resolves a compressor name, the empty string meaning no compression.
func ParseContentEncoding(name string) (ContentEncoding, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return ContentEncodingPlain, nil
	}
	for e, n := range encodingNames {
		if n == name {
			return e, nil
		}
	}
	return ContentEncodingPlain, errors.Wrapf(ErrUnknownContentEncoding, "%q", name)
}

// Name returns the gRPC compressor name of e.
func (e ContentEncoding) Name() string {
	if n, ok := encodingNames[e]; ok {
		return n
	}
	return Identity
}

// IsPlain reports whether e leaves payloads uncompressed.
func (e ContentEncoding) IsPlain() bool {
	return e == ContentEncodingPlain
}

func init() {
	encoding.RegisterCompressor(newZlibCompressor())
	encoding.RegisterCompressor(newBrotliCompressor())
}

type pooledWriter struct {
	io.WriteCloser
	put func()
}

func (w *pooledWriter) Close() error {
	defer w.put()
	return w.WriteCloser.Close()
}

type zlibCompressor struct {
	writerPool sync.Pool
}

func newZlibCompressor() *zlibCompressor {
	return &zlibCompressor{
		writerPool: sync.Pool{
			New: func() interface{} {
				return zlib.NewWriter(nil)
			},
		},
	}
}

func (c *zlibCompressor) Name() string {
	return Deflate
}

func (c *zlibCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	zw := c.writerPool.Get().(*zlib.Writer)
	zw.Reset(w)
	return &pooledWriter{
		WriteCloser: zw,
		put:         func() { c.writerPool.Put(zw) },
	}, nil
}

func (c *zlibCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return zlib.NewReader(r)
}

type brotliCompressor struct {
	writerPool sync.Pool
	readerPool sync.Pool
}

func newBrotliCompressor() *brotliCompressor {
	return &brotliCompressor{
		writerPool: sync.Pool{
			New: func() interface{} {
				return brotli.NewWriter(nil)
			},
		},
		readerPool: sync.Pool{
			New: func() interface{} {
				return brotli.NewReader(nil)
			},
		},
	}
}

func (c *brotliCompressor) Name() string {
	return Brotli
}

func (c *brotliCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	bw := c.writerPool.Get().(*brotli.Writer)
	bw.Reset(w)
	return &pooledWriter{
		WriteCloser: bw,
		put:         func() { c.writerPool.Put(bw) },
	}, nil
}

func (c *brotliCompressor) Decompress(r io.Reader) (io.Reader, error) {
	br := c.readerPool.Get().(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		c.readerPool.Put(br)
		return nil, err
	}
	return &pooledReader{Reader: br, put: func() { c.readerPool.Put(br) }}, nil
}

// pooledReader returns its reader to the pool once drained.
type pooledReader struct {
	io.Reader
	put  func()
	done bool
}

func (r *pooledReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	n, err := r.Reader.Read(p)
	if err == io.EOF {
		r.done = true
		r.put()
	}
	return n, err
}
