package stream

import (
	"context"
	"encoding/binary"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/segment"
)

// BufferedSink decorates a raw Sink with an owned Buffer and exposes typed
// write operations over it. Writes stage into the Buffer and eagerly flush
// complete segments; Emit flushes whatever is buffered; Flush forces the
// delegate to flush too.
type BufferedSink struct {
	delegate Sink
	buf      *buffer.Buffer
	closed   bool
}

// NewBufferedSink returns a BufferedSink writing to delegate, allocating
// segments from pool.
func NewBufferedSink(delegate Sink, pool *segment.Pool) *BufferedSink {
	return &BufferedSink{delegate: delegate, buf: buffer.New(pool)}
}

// Buffer exposes the sink's internal Buffer for callers that need direct
// access.
func (s *BufferedSink) Buffer() *buffer.Buffer { return s.buf }

// Write implements Sink by staging src's bytes and eagerly emitting
// complete segments, so BufferedSink can itself sit behind another
// decorator.
func (s *BufferedSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	if s.closed {
		return ioerr.ErrClosed
	}

	if err := s.buf.Write(ctx, src, byteCount); err != nil {
		return err
	}

	return s.EmitCompleteSegments(ctx)
}

func (s *BufferedSink) writeBytes(ctx context.Context, p []byte) error {
	if s.closed {
		return ioerr.ErrClosed
	}

	s.buf.WriteBytes(p)

	return s.EmitCompleteSegments(ctx)
}

// WriteByte writes a single byte.
func (s *BufferedSink) WriteByte(ctx context.Context, b byte) error {
	return s.writeBytes(ctx, []byte{b})
}

// WriteShort writes a big-endian signed 16-bit integer.
func (s *BufferedSink) WriteShort(ctx context.Context, v int16) error {
	var p [2]byte
	binary.BigEndian.PutUint16(p[:], uint16(v))

	return s.writeBytes(ctx, p[:])
}

// WriteShortLE writes a little-endian signed 16-bit integer.
func (s *BufferedSink) WriteShortLE(ctx context.Context, v int16) error {
	var p [2]byte
	binary.LittleEndian.PutUint16(p[:], uint16(v))

	return s.writeBytes(ctx, p[:])
}

// WriteInt writes a big-endian signed 32-bit integer.
func (s *BufferedSink) WriteInt(ctx context.Context, v int32) error {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], uint32(v))

	return s.writeBytes(ctx, p[:])
}

// WriteIntLE writes a little-endian signed 32-bit integer.
func (s *BufferedSink) WriteIntLE(ctx context.Context, v int32) error {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], uint32(v))

	return s.writeBytes(ctx, p[:])
}

// WriteLong writes a big-endian signed 64-bit integer.
func (s *BufferedSink) WriteLong(ctx context.Context, v int64) error {
	var p [8]byte
	binary.BigEndian.PutUint64(p[:], uint64(v))

	return s.writeBytes(ctx, p[:])
}

// WriteLongLE writes a little-endian signed 64-bit integer.
func (s *BufferedSink) WriteLongLE(ctx context.Context, v int64) error {
	var p [8]byte
	binary.LittleEndian.PutUint64(p[:], uint64(v))

	return s.writeBytes(ctx, p[:])
}

// WriteUTF8 writes str's UTF-8 bytes.
func (s *BufferedSink) WriteUTF8(ctx context.Context, str string) error {
	return s.writeBytes(ctx, []byte(str))
}

// EmitCompleteSegments flushes to the delegate only the bytes occupying
// fully-filled segments except the last, bounding latency to at most one
// segment of buffered data.
func (s *BufferedSink) EmitCompleteSegments(ctx context.Context) error {
	complete := s.completeByteCount()
	if complete == 0 {
		return nil
	}

	return s.delegate.Write(ctx, s.buf, complete)
}

func (s *BufferedSink) completeByteCount() int64 {
	segs := s.buf.Segments()
	if len(segs) <= 1 {
		return 0
	}

	return s.buf.Size() - int64(len(segs[len(segs)-1]))
}

// Emit flushes every buffered byte to the delegate, regardless of segment
// boundaries.
func (s *BufferedSink) Emit(ctx context.Context) error {
	if s.buf.IsEmpty() {
		return nil
	}

	return s.delegate.Write(ctx, s.buf, s.buf.Size())
}

// Flush emits everything buffered, then forces the delegate to flush.
func (s *BufferedSink) Flush(ctx context.Context) error {
	if err := s.Emit(ctx); err != nil {
		return err
	}

	return s.delegate.Flush(ctx)
}

// Close emits remaining bytes and closes the delegate. Idempotent; the
// first error encountered is returned and the rest are suppressed.
func (s *BufferedSink) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	var errs ioerr.First
	errs.Add(s.Emit(context.Background()))
	errs.Add(s.delegate.Close())

	return errs.Err()
}

func (s *BufferedSink) Timeout() deadline.Timeout { return s.delegate.Timeout() }
