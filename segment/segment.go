// Package segment implements the fixed-capacity byte block that is the unit
// of storage inside a Buffer and the unit of zero-copy transfer between
// Buffers, plus the lock-free, sharded Pool that recycles them.
//
// The Pool's CAS freelist is grounded on the MPSC ring buffer in
// agilira-lethe's buffer.go: reserve state with a compare-and-swap before
// touching data, never retry a lost race, and let contention degrade to the
// allocator rather than to blocking.
package segment

// Size is the fixed capacity, in bytes, of every Segment's backing array.
const Size = 8192

// ShareMinimum is the minimum byte count worth sharing a backing array for,
// instead of copying. Below this, Split copies.
const ShareMinimum = 1024

// Segment is a fixed-capacity byte block with read ("pos") and write
// ("limit") cursors, forming a node of a Buffer's circular doubly-linked
// list and, when idle, of a Pool bucket's singly-linked freelist.
//
// Invariant: 0 <= pos <= limit <= len(data).
type Segment struct {
	data []byte // always len(data) == Size; may be shared with another Segment

	pos   int
	limit int

	// shared is true when data is aliased by another Segment. A shared
	// Segment is never recycled by the Pool and never receives CompactInto
	// bytes; an owner may still append past limit, a region no alias covers.
	shared bool

	// owner is true when this Segment may extend limit. False for read-only
	// views produced by Split.
	owner bool

	next, prev *Segment // Buffer's circular list
	poolNext   *Segment // Pool bucket's freelist
}

// NewOwned returns a freshly allocated, empty, owner Segment. Used by the
// Pool when a bucket is empty or contended.
func NewOwned() *Segment {
	return &Segment{data: make([]byte, Size), owner: true}
}

// Len returns the number of unread bytes in the segment.
func (s *Segment) Len() int { return s.limit - s.pos }

// Free returns the number of bytes that can still be written, 0 for a
// non-owner segment.
func (s *Segment) Free() int {
	if !s.owner {
		return 0
	}

	return Size - s.limit
}

// Data gives read access to the unread region [pos:limit).
func (s *Segment) Data() []byte { return s.data[s.pos:s.limit] }

// WritableTail gives write access to the free region [limit:Size). Panics on
// a non-owner segment; callers must check Free() first.
func (s *Segment) WritableTail() []byte {
	if !s.owner {
		panic("segment: WritableTail on non-owner segment")
	}

	return s.data[s.limit:Size]
}

// Advance moves limit forward by n after the caller has written n bytes into
// WritableTail(). Panics if it would overflow Size; callers must bound n by
// Free() first.
func (s *Segment) Advance(n int) {
	if !s.owner {
		panic("segment: Advance on non-owner segment")
	}

	if s.limit+n > Size {
		panic("segment: Advance overflows segment")
	}

	s.limit += n
}

// Consume moves pos forward by n after the caller has read n bytes from
// Data(). Panics if it would pass limit.
func (s *Segment) Consume(n int) {
	if s.pos+n > s.limit {
		panic("segment: Consume overflows segment")
	}

	s.pos += n
}

// Next returns the segment following s in its circular list.
func (s *Segment) Next() *Segment { return s.next }

// Prev returns the segment preceding s in its circular list (the tail, when
// s is the list's head).
func (s *Segment) Prev() *Segment { return s.prev }

// SelfLink makes s a one-element circular list: s.next == s.prev == s.
func (s *Segment) SelfLink() {
	s.next = s
	s.prev = s
}

// PushAfter inserts newSeg immediately after s in s's circular list.
func (s *Segment) PushAfter(newSeg *Segment) {
	newSeg.prev = s
	newSeg.next = s.next
	s.next.prev = newSeg
	s.next = newSeg
}

// Pop detaches s from its circular list and returns the segment that used to
// follow it, or nil if s was alone (s.next == s).
func (s *Segment) Pop() *Segment {
	var result *Segment
	if s.next != s {
		result = s.next
	}

	s.prev.next = s.next
	s.next.prev = s.prev
	s.next = nil
	s.prev = nil

	return result
}

// Split produces a new Segment that shares the first byteCount bytes of s's
// data. Both s and the new segment are marked shared. If byteCount is below
// ShareMinimum, or s is not an owner segment, the bytes are copied into a
// fresh owned Segment instead of aliased, so that callers needing many small
// shares don't pin arbitrarily large backing arrays alive.
func (s *Segment) Split(byteCount int) *Segment {
	if byteCount <= 0 || byteCount > s.Len() {
		panic("segment: Split byteCount out of range")
	}

	if byteCount >= ShareMinimum && s.owner {
		shared := &Segment{
			data:   s.data,
			pos:    s.pos,
			limit:  s.pos + byteCount,
			shared: true,
			owner:  false,
		}
		s.shared = true
		s.pos += byteCount

		return shared
	}

	copySeg := NewOwned()
	n := copy(copySeg.data, s.data[s.pos:s.pos+byteCount])
	copySeg.limit = n
	s.pos += byteCount

	return copySeg
}

// CompactInto copies s's unread bytes into prev's free tail and returns true
// if they fit, leaving s empty (ready for the caller to unlink and recycle).
// It never mutates a shared segment's data and never writes into a
// non-owner or shared prev.
func (s *Segment) CompactInto(prev *Segment) bool {
	if !prev.owner || prev.shared {
		return false
	}

	if s.Len() > prev.Free() {
		return false
	}

	n := copy(prev.WritableTail(), s.Data())
	prev.Advance(n)
	s.pos += n

	return true
}

// WriteTo copies up to byteCount bytes from s into target's writable tail,
// advancing both cursors, and returns how many bytes were actually moved.
func (s *Segment) WriteTo(target *Segment, byteCount int) int {
	n := byteCount
	if avail := s.Len(); n > avail {
		n = avail
	}

	if free := target.Free(); n > free {
		n = free
	}

	copy(target.WritableTail(), s.data[s.pos:s.pos+n])
	target.Advance(n)
	s.pos += n

	return n
}

// Shared reports whether s's backing array is aliased by another Segment.
func (s *Segment) Shared() bool { return s.shared }

// Owner reports whether s may extend its limit.
func (s *Segment) Owner() bool { return s.owner }

// AtStart reports whether s's unread region begins at offset 0 of its
// backing array, the condition under which a prefix share-split is safe
// without leaving an unreachable gap behind in the original segment.
func (s *Segment) AtStart() bool { return s.pos == 0 }

// ShareView returns a new read-only Segment aliasing s's backing array over
// [start:start+length) relative to s's own data window (i.e. absolute
// offsets s.pos+start .. s.pos+start+length). Marks both s and the new
// segment shared.
func (s *Segment) ShareView(start, length int) *Segment {
	if start < 0 || length < 0 || start+length > s.Len() {
		panic("segment: ShareView range out of bounds")
	}

	s.shared = true

	return &Segment{
		data:   s.data,
		pos:    s.pos + start,
		limit:  s.pos + start + length,
		shared: true,
		owner:  false,
	}
}

// CopyRange returns a new owned Segment holding a byte-for-byte copy of
// s's data over [start:start+length).
func (s *Segment) CopyRange(start, length int) *Segment {
	if start < 0 || length < 0 || start+length > s.Len() {
		panic("segment: CopyRange range out of bounds")
	}

	out := NewOwned()
	n := copy(out.data, s.data[s.pos+start:s.pos+start+length])
	out.limit = n

	return out
}

// reset clears a Segment's cursors and sharing flags for reuse by the Pool.
// It does not zero data; callers never read past limit, which starts at 0.
func (s *Segment) reset() {
	s.pos = 0
	s.limit = 0
	s.shared = false
	s.owner = true
	s.next = nil
	s.prev = nil
	s.poolNext = nil
}
