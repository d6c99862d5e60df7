// Package bytestring implements ByteString, the engine's immutable,
// comparable, hashable byte sequence. A ByteString stores either a single
// flat array or a segmented array-of-arrays produced by snapshotting a
// Buffer, but every operation presents a flat view regardless of which form
// backs it.
//
// Grounded on internal/gather's Bytes type (gather_bytes_test.go), which
// gives a []byte-of-[]byte type its own Length/Reader/flat-view operations
// without ever requiring the caller to flatten first.
package bytestring

import (
	"hash"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/buffer"
)

// ByteString is an immutable byte sequence. The zero value is the empty
// string. Values are safe to share across goroutines and safe to copy:
// nothing about a ByteString is ever mutated after construction, including
// its lazily computed hash, which lives behind a pointer so that copying a
// ByteString never copies a lock.
type ByteString struct {
	segs []segRange
	hc   *hashCache
}

// hashCache holds a ByteString's lazily computed hash behind a sync.Once, so
// concurrent first-readers of the same ByteString compute it exactly once.
type hashCache struct {
	once sync.Once
	val  uint64
}

// segRange is one contiguous piece of a ByteString's backing storage.
type segRange struct {
	data []byte
}

// Empty is the zero-length ByteString.
var Empty = ByteString{hc: &hashCache{}}

// FromBytes copies b into a new flat ByteString. The caller's slice may be
// reused or mutated afterward without affecting the result.
func FromBytes(b []byte) ByteString {
	if len(b) == 0 {
		return Empty
	}

	cp := make([]byte, len(b))
	copy(cp, b)

	return ByteString{segs: []segRange{{cp}}, hc: &hashCache{}}
}

// FromString copies s into a new flat ByteString.
func FromString(s string) ByteString {
	return FromBytes([]byte(s))
}

// FromBuffer snapshots the first byteCount bytes of buf into a ByteString
// without copying: it shares Buffer's segments through buf.CopyTo into a
// scratch Buffer, then lifts that scratch Buffer's segments directly into
// the result. The scratch Buffer is never exposed, so its segments are
// effectively frozen even though Buffer itself is mutable.
func FromBuffer(buf *buffer.Buffer, byteCount int64) (ByteString, error) {
	if byteCount == 0 {
		return Empty, nil
	}

	scratch := buffer.New(nil)
	if err := buf.CopyTo(scratch, 0, byteCount); err != nil {
		return ByteString{}, errors.Wrap(err, "bytestring: snapshot buffer")
	}

	raw := scratch.Segments()
	segs := make([]segRange, 0, len(raw))

	for _, s := range raw {
		if len(s) == 0 {
			continue
		}

		segs = append(segs, segRange{s})
	}

	return ByteString{segs: segs, hc: &hashCache{}}, nil
}

// ReadFromBuffer consumes the first byteCount bytes of buf and returns them
// as a flat ByteString, advancing buf's read cursor by byteCount — the
// consuming counterpart to FromBuffer's non-consuming snapshot, mirroring
// Okio's Buffer.readByteString() as distinct from its snapshot().
func ReadFromBuffer(buf *buffer.Buffer, byteCount int64) (ByteString, error) {
	if byteCount == 0 {
		return Empty, nil
	}

	if byteCount < 0 || byteCount > buf.Size() {
		return ByteString{}, errors.Errorf("bytestring: read byteCount %d out of range (buffer has %d)", byteCount, buf.Size())
	}

	p := make([]byte, byteCount)
	buf.ReadBytes(p)

	return FromBytes(p), nil
}

// Len returns the number of bytes in the sequence.
func (b ByteString) Len() int {
	n := 0
	for _, s := range b.segs {
		n += len(s.data)
	}

	return n
}

// IsEmpty reports whether the sequence has zero bytes.
func (b ByteString) IsEmpty() bool { return b.Len() == 0 }

// At returns the byte at index i. Panics if i is out of range.
func (b ByteString) At(i int) byte {
	if i < 0 {
		panic("bytestring: At negative index")
	}

	for _, s := range b.segs {
		if i < len(s.data) {
			return s.data[i]
		}

		i -= len(s.data)
	}

	panic("bytestring: At index out of range")
}

// Bytes flattens the sequence into a single newly allocated slice.
func (b ByteString) Bytes() []byte {
	out := make([]byte, 0, b.Len())
	for _, s := range b.segs {
		out = append(out, s.data...)
	}

	return out
}

// String flattens the sequence into a Go string.
func (b ByteString) String() string {
	var sb strings.Builder

	sb.Grow(b.Len())
	for _, s := range b.segs {
		sb.Write(s.data)
	}

	return sb.String()
}

// Equal reports whether b and other hold the same bytes.
func (b ByteString) Equal(other ByteString) bool {
	if b.Len() != other.Len() {
		return false
	}

	return b.Compare(other) == 0
}

// Compare returns a negative, zero, or positive value as b is
// lexicographically less than, equal to, or greater than other.
func (b ByteString) Compare(other ByteString) int {
	bi, oi := byteIter(b), byteIter(other)

	for {
		bv, bok := bi()
		ov, ook := oi()

		switch {
		case !bok && !ook:
			return 0
		case !bok:
			return -1
		case !ook:
			return 1
		case bv != ov:
			return int(bv) - int(ov)
		}
	}
}

// byteIter returns a closure yielding b's bytes one at a time without
// flattening, so Compare never allocates.
func byteIter(b ByteString) func() (byte, bool) {
	segIdx, off := 0, 0

	return func() (byte, bool) {
		for segIdx < len(b.segs) {
			s := b.segs[segIdx].data
			if off < len(s) {
				v := s[off]
				off++

				return v, true
			}

			segIdx++
			off = 0
		}

		return 0, false
	}
}

// Hash returns a 64-bit hash of the sequence's bytes, computed on first call
// and cached for every subsequent call, including calls on copies of b.
func (b ByteString) Hash() uint64 {
	if b.hc == nil {
		return xxhash.Sum64(nil)
	}

	b.hc.once.Do(func() {
		d := xxhash.New()
		for _, s := range b.segs {
			_, _ = d.Write(s.data)
		}

		b.hc.val = d.Sum64()
	})

	return b.hc.val
}

// Sub returns the byte range [start:end) as a new ByteString that shares
// the original's underlying arrays rather than copying them.
func (b ByteString) Sub(start, end int) ByteString {
	if start < 0 || end < start || end > b.Len() {
		panic("bytestring: Sub range out of bounds")
	}

	var out []segRange

	pos := 0
	for _, s := range b.segs {
		segStart := pos
		segEnd := pos + len(s.data)
		pos = segEnd

		lo := max(start, segStart)
		hi := min(end, segEnd)

		if lo < hi {
			out = append(out, segRange{s.data[lo-segStart : hi-segStart]})
		}
	}

	return ByteString{segs: out, hc: &hashCache{}}
}

// IndexOf returns the index of the first occurrence of c at or after from,
// or -1 if not found.
func (b ByteString) IndexOf(c byte, from int) int {
	pos := 0
	for _, s := range b.segs {
		if pos+len(s.data) > from {
			start := 0
			if from > pos {
				start = from - pos
			}

			if i := indexByte(s.data, c, start); i >= 0 {
				return pos + i
			}
		}

		pos += len(s.data)
	}

	return -1
}

func indexByte(data []byte, c byte, from int) int {
	for i := from; i < len(data); i++ {
		if data[i] == c {
			return i
		}
	}

	return -1
}

// IndexOfBytes returns the index of the first occurrence of sub at or after
// from, or -1 if not found. It compares byte by byte through At and never
// flattens the sequence.
func (b ByteString) IndexOfBytes(sub []byte, from int) int {
	if len(sub) == 0 {
		return from
	}

	n := b.Len()
	for i := from; i+len(sub) <= n; i++ {
		if b.matchesAt(i, sub) {
			return i
		}
	}

	return -1
}

func (b ByteString) matchesAt(offset int, sub []byte) bool {
	for i, want := range sub {
		if b.At(offset+i) != want {
			return false
		}
	}

	return true
}

// StartsWith reports whether b begins with prefix.
func (b ByteString) StartsWith(prefix ByteString) bool {
	if prefix.Len() > b.Len() {
		return false
	}

	return b.Sub(0, prefix.Len()).Equal(prefix)
}

// EndsWith reports whether b ends with suffix.
func (b ByteString) EndsWith(suffix ByteString) bool {
	n, m := b.Len(), suffix.Len()
	if m > n {
		return false
	}

	return b.Sub(n-m, n).Equal(suffix)
}

// ToUpperASCII returns a copy of b with ASCII letters upper-cased.
func (b ByteString) ToUpperASCII() ByteString {
	return FromBytes(mapASCII(b.Bytes(), toUpperByte))
}

// ToLowerASCII returns a copy of b with ASCII letters lower-cased.
func (b ByteString) ToLowerASCII() ByteString {
	return FromBytes(mapASCII(b.Bytes(), toLowerByte))
}

func mapASCII(data []byte, f func(byte) byte) []byte {
	out := make([]byte, len(data))
	for i, c := range data {
		out[i] = f(c)
	}

	return out
}

func toUpperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}

	return c
}

func toLowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}

	return c
}

// Utf8Valid reports whether b's bytes form valid UTF-8.
func (b ByteString) Utf8Valid() bool {
	return utf8.Valid(b.Bytes())
}

// Digest feeds every backing segment to h without ever flattening the
// sequence into an intermediate slice, then returns h.Sum(nil).
func (b ByteString) Digest(h hash.Hash) []byte {
	for _, s := range b.segs {
		_, _ = h.Write(s.data)
	}

	return h.Sum(nil)
}

