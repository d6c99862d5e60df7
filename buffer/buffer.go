// Package buffer implements the segmented byte buffer at the heart of the
// engine: a circular doubly-linked list of pooled Segments that supports
// zero-copy transfer of bytes between buffers.
//
// Grounded on internal/gather's dual flat/segmented representation
// (gather_bytes_test.go, gather_write_buffer_test.go) for the segment
// bookkeeping, and on the spec's own move algorithm (whole-segment re-link
// plus share-split) for cross-buffer transfer, which is what makes large
// transfers O(segments) instead of O(bytes).
package buffer

import (
	"context"

	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/logging"
	"github.com/segbuf/segbuf/segment"
)

var log = logging.Module("buffer")

// Buffer is a single-owner, circular doubly-linked list of Segments. It is
// not safe for concurrent mutation — the spec explicitly scopes
// thread-safe buffer mutation out, matching "single-owner" semantics.
type Buffer struct {
	pool *segment.Pool
	head *segment.Segment
	size int64
}

// New returns an empty Buffer backed by pool. A nil pool is valid: the
// Buffer falls back to unpooled allocation (see segment.Pool.Take on a nil
// receiver).
func New(pool *segment.Pool) *Buffer {
	return &Buffer{pool: pool}
}

// Size returns the number of unread bytes currently buffered.
func (b *Buffer) Size() int64 { return b.size }

// IsEmpty reports whether the buffer holds no bytes.
func (b *Buffer) IsEmpty() bool { return b.size == 0 }

// Timeout satisfies stream.Source/Sink; a pure in-memory Buffer never
// blocks, so it never has a deadline of its own.
func (b *Buffer) Timeout() deadline.Timeout { return deadline.None }

// Flush is a no-op: a Buffer has no downstream to flush to.
func (b *Buffer) Flush(context.Context) error { return nil }

// Close recycles every segment back to the pool and empties the buffer.
// Idempotent.
func (b *Buffer) Close() error {
	b.Clear()
	return nil
}

// Clear recycles every segment back to the pool, leaving the buffer empty.
func (b *Buffer) Clear() {
	for b.head != nil {
		seg := b.head
		next := seg.Pop()
		b.pool.Recycle(seg)
		b.head = next
	}

	b.size = 0
}

// tail returns the last segment in the list (head.Prev()), or nil if empty.
func (b *Buffer) tail() *segment.Segment {
	if b.head == nil {
		return nil
	}

	return b.head.Prev()
}

// linkAsOnly makes seg a one-element circular list and the head.
func (b *Buffer) linkAsOnly(seg *segment.Segment) {
	seg.SelfLink()
	b.head = seg
}

// appendSegment links seg as the new tail of the circular list.
func (b *Buffer) appendSegment(seg *segment.Segment) {
	if b.head == nil {
		b.linkAsOnly(seg)
		return
	}

	b.tail().PushAfter(seg)
}

// WritableSegment returns a tail segment with at least minCapacity free
// bytes, allocating a new pooled segment as needed. minCapacity must be
// between 1 and segment.Size.
func (b *Buffer) WritableSegment(minCapacity int) *segment.Segment {
	if minCapacity <= 0 || minCapacity > segment.Size {
		panic("buffer: WritableSegment minCapacity out of range")
	}

	t := b.tail()
	if t != nil && t.Owner() && t.Free() >= minCapacity {
		return t
	}

	fresh := b.pool.Take(context.Background())
	b.appendSegment(fresh)

	return fresh
}

// WriteBytes appends data to the buffer's tail, allocating pooled segments
// as needed, and returns len(data). It never fails: unlike Write, its source
// is a plain byte slice rather than another Buffer, so there is no
// byteCount-exceeds-source-size case to reject.
func (b *Buffer) WriteBytes(data []byte) int {
	written := len(data)

	for len(data) > 0 {
		seg := b.WritableSegment(1)

		chunk := seg.Free()
		if chunk > len(data) {
			chunk = len(data)
		}

		n := copy(seg.WritableTail(), data[:chunk])
		seg.Advance(n)
		b.size += int64(n)
		data = data[n:]
	}

	return written
}

// ReadBytes drains up to len(p) bytes from the buffer's head into p and
// returns how many bytes were copied. It never returns an error; an empty
// buffer simply yields 0.
func (b *Buffer) ReadBytes(p []byte) int {
	read := 0

	for len(p) > 0 && b.head != nil {
		n := copy(p, b.head.Data())
		b.head.Consume(n)
		b.size -= int64(n)
		read += n
		p = p[n:]

		b.removeHeadIfEmpty()
	}

	return read
}

// Segments returns a read-only view of every segment's unread bytes, head
// to tail, without consuming them. Each returned slice aliases the buffer's
// internal storage: callers must not retain it past the next mutation of b.
// This is the zero-copy hook bytestring.FromBuffer uses to snapshot a
// buffer's contents as a segmented ByteString.
func (b *Buffer) Segments() [][]byte {
	var out [][]byte

	b.walk(func(s *segment.Segment) { out = append(out, s.Data()) })

	return out
}

// DebugSegmentIdentities exposes segment pointers so tests can verify
// zero-copy transfer (spec scenario 6): a segment moved between buffers is
// the same object, not a copy. Exported for use from _test.go files in
// other packages that assert on this property; not part of the engine's
// operational API.
func (b *Buffer) DebugSegmentIdentities() []*segment.Segment {
	var out []*segment.Segment

	b.walk(func(s *segment.Segment) { out = append(out, s) })

	return out
}

func (b *Buffer) walk(visit func(*segment.Segment)) {
	if b.head == nil {
		return
	}

	s := b.head
	for {
		visit(s)

		if s.Next() == b.head {
			return
		}

		s = s.Next()
	}
}

// ErrNegativeCount is returned by any operation asked to move a negative
// number of bytes.
var ErrNegativeCount = ioerr.Protocolf("buffer: negative byte count")
