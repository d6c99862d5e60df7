package buffer

import (
	"context"
	"io"

	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/segment"
)

// Write moves exactly byteCount bytes from src's head into b's tail. A whole
// head segment is re-linked rather than copied, except when its bytes fit
// into b's current tail, where they are compacted into it; a prefix of more
// than segment.ShareMinimum bytes from the start of an owner segment is
// shared by a split rather than copied — the two tricks that make
// cross-buffer transfer O(segments) rather than O(bytes) for large payloads.
func (b *Buffer) Write(ctx context.Context, src *Buffer, byteCount int64) error {
	if byteCount < 0 {
		return ErrNegativeCount
	}

	if byteCount > src.size {
		return ioerr.ErrEndOfInput
	}

	n := byteCount
	for n > 0 {
		head := src.head
		available := int64(head.Len())
		merges := b.canMergeIntoTail(head)

		if n >= available && merges {
			// head fits whole into the existing tail's free space: compact
			// rather than re-link, so the tail stays densely packed instead
			// of growing a new segment for a few leftover bytes.
			tail := b.tail()
			head.CompactInto(tail)
			src.unlinkHead()
			b.pool.Recycle(head)
			b.size += available
			src.size -= available
			n -= available

			continue
		}

		if n >= available {
			// whole-segment re-link
			src.unlinkHead()
			b.appendSegment(head)
			b.size += available
			src.size -= available
			n -= available

			continue
		}

		if head.AtStart() && n > int64(segment.ShareMinimum) && head.Owner() && !merges {
			shareLen := int(n)
			if shareLen > head.Len() {
				shareLen = head.Len()
			}

			shared := head.Split(shareLen)
			b.appendSegment(shared)
			n -= int64(shareLen)
			src.size -= int64(shareLen)
			b.size += int64(shareLen)

			src.removeHeadIfEmpty()

			continue
		}

		// partial: copy into (or merge with) the writable tail.
		step := n
		if step > available {
			step = available
		}

		tail := b.WritableSegment(1)
		if room := int64(tail.Free()); step > room {
			step = room
		}

		moved := head.WriteTo(tail, int(step))
		b.size += int64(moved)
		src.size -= int64(moved)
		n -= int64(moved)

		src.removeHeadIfEmpty()
	}

	return nil
}

// canMergeIntoTail reports whether head's bytes would fit into b's current
// tail's free space, in which case a whole-segment re-link would waste
// space and a copy-compact is preferred instead.
func (b *Buffer) canMergeIntoTail(head *segment.Segment) bool {
	t := b.tail()
	if t == nil || !t.Owner() || t.Shared() {
		return false
	}

	return head.Len() <= t.Free()
}

// unlinkHead detaches b's head segment from the list without recycling it
// and without touching b.size (the caller is responsible for both).
func (b *Buffer) unlinkHead() {
	head := b.head
	next := head.Pop()

	if next == head {
		next = nil
	}

	b.head = next
}

// removeHeadIfEmpty unlinks and recycles b's head segment if it has no
// unread bytes left.
func (b *Buffer) removeHeadIfEmpty() {
	if b.head != nil && b.head.Len() == 0 {
		seg := b.head
		b.unlinkHead()
		b.pool.Recycle(seg)
	}
}

// Read moves min(byteCount, b.Size()) bytes from b's head into dst's tail,
// and returns how many bytes were moved, or io.EOF if b was already empty
// and byteCount > 0.
func (b *Buffer) Read(ctx context.Context, dst *Buffer, byteCount int64) (int64, error) {
	if byteCount < 0 {
		return 0, ErrNegativeCount
	}

	if b.size == 0 {
		if byteCount == 0 {
			return 0, nil
		}

		return 0, io.EOF
	}

	n := byteCount
	if n > b.size {
		n = b.size
	}

	if err := dst.Write(ctx, b, n); err != nil {
		return 0, err
	}

	return n, nil
}

// CopyTo copies byteCount bytes starting at offset into dst, without
// consuming them from b. The copied range is shared (aliased), not
// duplicated byte-for-byte, so both b and dst end up with segments marked
// shared over that range.
func (b *Buffer) CopyTo(dst *Buffer, offset, byteCount int64) error {
	if offset < 0 || byteCount < 0 {
		return ErrNegativeCount
	}

	if offset+byteCount > b.size {
		return ioerr.ErrEndOfInput
	}

	s := b.head
	pos := int64(0)

	for pos+int64(s.Len()) <= offset {
		pos += int64(s.Len())
		s = s.Next()
	}

	remaining := byteCount
	skip := offset - pos

	for remaining > 0 {
		avail := int64(s.Len()) - skip

		take := remaining
		if take > avail {
			take = avail
		}

		dst.appendSegment(shareRange(s, int(skip), int(take)))
		dst.size += take

		remaining -= take
		skip = 0
		s = s.Next()
	}

	return nil
}

// shareRange returns a new read-only segment aliasing s's data over
// [start:start+length); both s and the result are marked shared.
func shareRange(s *segment.Segment, start, length int) *segment.Segment {
	return s.ShareView(start, length)
}
