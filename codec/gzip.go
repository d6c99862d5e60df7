package codec

import (
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/segment"
	"github.com/segbuf/segbuf/stream"
)

// GzipSink compresses into the gzip container format through a gzip.Writer:
// a header on the first write and a CRC32 + length trailer on Close.
type GzipSink struct {
	delegate stream.Sink
	out      *buffer.Buffer
	gw       *gzip.Writer
	closed   bool
}

// NewGzipSink returns a GzipSink writing the gzip format to delegate.
func NewGzipSink(delegate stream.Sink, level int, pool *segment.Pool) (*GzipSink, error) {
	out := buffer.New(pool)

	gw, err := gzip.NewWriterLevel(bufferIOWriter{out}, level)
	if err != nil {
		return nil, errors.Wrap(err, "codec: new gzip writer")
	}

	return &GzipSink{delegate: delegate, out: out, gw: gw}, nil
}

func (g *GzipSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	raw := make([]byte, byteCount)
	if n := src.ReadBytes(raw); int64(n) != byteCount {
		return ioerr.Protocolf("codec: short read staging gzip input (%d of %d)", n, byteCount)
	}

	if _, err := g.gw.Write(raw); err != nil {
		return errors.Wrap(err, "codec: gzip write")
	}

	return g.flushStaged(ctx)
}

func (g *GzipSink) flushStaged(ctx context.Context) error {
	if g.out.IsEmpty() {
		return nil
	}

	return g.delegate.Write(ctx, g.out, g.out.Size())
}

func (g *GzipSink) Flush(ctx context.Context) error {
	if err := g.gw.Flush(); err != nil {
		return errors.Wrap(err, "codec: gzip flush")
	}

	if err := g.flushStaged(ctx); err != nil {
		return err
	}

	return g.delegate.Flush(ctx)
}

func (g *GzipSink) Close() error {
	if g.closed {
		return nil
	}

	g.closed = true

	var errs ioerr.First
	errs.Add(g.gw.Close())
	errs.Add(g.flushStaged(context.Background()))
	errs.Add(g.delegate.Close())

	return errs.Err()
}

func (g *GzipSink) Timeout() deadline.Timeout { return g.delegate.Timeout() }

// GzipSource validates the gzip header (magic bytes, optional
// FNAME/FEXTRA/FCOMMENT/FHCRC fields) and decompresses the payload,
// validating the CRC32 and length trailer when the stream is exhausted.
type GzipSource struct {
	delegate stream.Source
	reader   *sourceIOReader
	gr       *gzip.Reader
}

// NewGzipSource returns a GzipSource reading gzip-framed bytes from
// delegate. The gzip header is read and validated here, so a malformed
// header fails construction.
func NewGzipSource(ctx context.Context, delegate stream.Source, pullLen int64, pool *segment.Pool) (*GzipSource, error) {
	r := &sourceIOReader{ctx: ctx, src: delegate, staging: buffer.New(pool), pullLen: pullLen}

	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "codec: invalid gzip header")
	}

	return &GzipSource{delegate: delegate, reader: r, gr: gr}, nil
}

func (s *GzipSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	s.reader.ctx = ctx

	chunk := make([]byte, byteCount)

	n, err := s.gr.Read(chunk)
	if n > 0 {
		dst.WriteBytes(chunk[:n])
	}

	if errors.Is(err, io.EOF) {
		return int64(n), io.EOF
	}

	if err != nil {
		return int64(n), errors.Wrap(err, "codec: gzip read")
	}

	return int64(n), nil
}

func (s *GzipSource) Timeout() deadline.Timeout { return s.delegate.Timeout() }

func (s *GzipSource) Close() error {
	return s.gr.Close()
}
