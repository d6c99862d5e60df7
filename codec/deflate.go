package codec

import (
	"context"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/segment"
	"github.com/segbuf/segbuf/stream"
)

// DeflateSink compresses everything written to it and forwards the
// compressed bytes to delegate. Flush emits everything buffered so far
// using a sync-flush block; Close emits the final block.
type DeflateSink struct {
	delegate stream.Sink
	out      *buffer.Buffer
	fw       *flate.Writer
	closed   bool
}

// NewDeflateSink returns a DeflateSink writing at the given compression
// level (flate.DefaultCompression is a reasonable default) to delegate.
func NewDeflateSink(delegate stream.Sink, level int, pool *segment.Pool) (*DeflateSink, error) {
	out := buffer.New(pool)

	fw, err := flate.NewWriter(bufferIOWriter{out}, level)
	if err != nil {
		return nil, errors.Wrap(err, "codec: new deflate writer")
	}

	return &DeflateSink{delegate: delegate, out: out, fw: fw}, nil
}

func (d *DeflateSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	raw := make([]byte, byteCount)
	if n := src.ReadBytes(raw); int64(n) != byteCount {
		return ioerr.Protocolf("codec: short read staging deflate input (%d of %d)", n, byteCount)
	}

	if _, err := d.fw.Write(raw); err != nil {
		return errors.Wrap(err, "codec: deflate write")
	}

	return d.flushStaged(ctx)
}

func (d *DeflateSink) flushStaged(ctx context.Context) error {
	if d.out.IsEmpty() {
		return nil
	}

	return d.delegate.Write(ctx, d.out, d.out.Size())
}

// Flush emits everything buffered so far via sync-flush, then flushes the
// delegate.
func (d *DeflateSink) Flush(ctx context.Context) error {
	if err := d.fw.Flush(); err != nil {
		return errors.Wrap(err, "codec: deflate flush")
	}

	if err := d.flushStaged(ctx); err != nil {
		return err
	}

	return d.delegate.Flush(ctx)
}

// Close emits the final deflate block, flushes it to the delegate, and
// closes the delegate. Idempotent; the first error is surfaced.
func (d *DeflateSink) Close() error {
	if d.closed {
		return nil
	}

	d.closed = true

	var errs ioerr.First
	errs.Add(d.fw.Close())
	errs.Add(d.flushStaged(context.Background()))
	errs.Add(d.delegate.Close())

	return errs.Err()
}

func (d *DeflateSink) Timeout() deadline.Timeout { return d.delegate.Timeout() }

// InflateSource decompresses bytes pulled from delegate.
type InflateSource struct {
	delegate stream.Source
	reader   *sourceIOReader
	fr       io.ReadCloser
}

// NewInflateSource returns an InflateSource reading compressed bytes from
// delegate, pulling pullLen bytes at a time (segment.Size is a reasonable
// default).
func NewInflateSource(ctx context.Context, delegate stream.Source, pullLen int64, pool *segment.Pool) *InflateSource {
	r := &sourceIOReader{ctx: ctx, src: delegate, staging: buffer.New(pool), pullLen: pullLen}

	return &InflateSource{delegate: delegate, reader: r, fr: flate.NewReader(r)}
}

func (s *InflateSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	s.reader.ctx = ctx

	chunk := make([]byte, byteCount)

	n, err := s.fr.Read(chunk)
	if n > 0 {
		dst.WriteBytes(chunk[:n])
	}

	if err != nil {
		return int64(n), err
	}

	return int64(n), nil
}

func (s *InflateSource) Timeout() deadline.Timeout { return s.delegate.Timeout() }

// Close releases the flate reader's resources.
func (s *InflateSource) Close() error {
	return s.fr.Close()
}
