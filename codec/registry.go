package codec

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// HeaderID is the one-byte key a whole-stream compression algorithm is
// registered under in ByHeaderID, mirroring the teacher's repo/compression
// registry. Compress and Decompress neither write nor read this byte.
type HeaderID byte

const (
	HeaderIDDeflate HeaderID = 0x01
	HeaderIDGzip    HeaderID = 0x02
)

// Compressor compresses or decompresses an entire stream at once, for
// callers that have a whole blob in hand rather than a live Source/Sink
// pipeline (those use DeflateSink/GzipSink instead).
type Compressor interface {
	Compress(output io.Writer, input io.Reader) error
	Decompress(output io.Writer, input io.Reader, withEndMarker bool) error
}

// ByHeaderID is the set of compressors selectable by their HeaderID.
var ByHeaderID = map[HeaderID]Compressor{
	HeaderIDDeflate: deflateCompressor{},
	HeaderIDGzip:    gzipCompressor{},
}

type deflateCompressor struct{}

func (deflateCompressor) Compress(output io.Writer, input io.Reader) error {
	w, err := flate.NewWriter(output, flate.DefaultCompression)
	if err != nil {
		return errors.Wrap(err, "codec: new deflate writer")
	}

	if _, err := io.Copy(w, input); err != nil {
		return errors.Wrap(err, "codec: deflate compress")
	}

	return w.Close()
}

func (deflateCompressor) Decompress(output io.Writer, input io.Reader, _ bool) error {
	r := flate.NewReader(input)
	defer r.Close() //nolint:errcheck

	_, err := io.Copy(output, r)

	return errors.Wrap(err, "codec: deflate decompress")
}

type gzipCompressor struct{}

func (gzipCompressor) Compress(output io.Writer, input io.Reader) error {
	w := gzip.NewWriter(output)

	if _, err := io.Copy(w, input); err != nil {
		return errors.Wrap(err, "codec: gzip compress")
	}

	return w.Close()
}

func (gzipCompressor) Decompress(output io.Writer, input io.Reader, _ bool) error {
	r, err := gzip.NewReader(input)
	if err != nil {
		return errors.Wrap(err, "codec: gzip decompress")
	}
	defer r.Close()

	_, err = io.Copy(output, r)

	return errors.Wrap(err, "codec: gzip decompress")
}
