package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/bytestring"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/segment"
)

// BufferedSource decorates a raw Source with an owned Buffer and exposes
// typed read operations over it. Reads pull from the delegate in
// segment-sized chunks, then serve requests from the Buffer.
type BufferedSource struct {
	delegate Source
	buf      *buffer.Buffer
}

// NewBufferedSource returns a BufferedSource pulling from delegate,
// allocating segments from pool.
func NewBufferedSource(delegate Source, pool *segment.Pool) *BufferedSource {
	return &BufferedSource{delegate: delegate, buf: buffer.New(pool)}
}

// Buffer exposes the source's internal Buffer for callers that need direct
// access (e.g. to hand its contents to bytestring.FromBuffer).
func (s *BufferedSource) Buffer() *buffer.Buffer { return s.buf }

// Require ensures at least n bytes are buffered, pulling from the delegate
// as needed, and fails with ioerr.ErrEndOfInput if the delegate is
// exhausted first.
func (s *BufferedSource) Require(ctx context.Context, n int64) error {
	ok, err := s.request(ctx, n)
	if err != nil {
		return err
	}

	if !ok {
		return ioerr.ErrEndOfInput
	}

	return nil
}

// Request is like Require but returns false instead of failing when the
// delegate is exhausted before n bytes are available.
func (s *BufferedSource) Request(ctx context.Context, n int64) (bool, error) {
	return s.request(ctx, n)
}

func (s *BufferedSource) request(ctx context.Context, n int64) (bool, error) {
	for s.buf.Size() < n {
		pulled, err := s.delegate.Read(ctx, s.buf, int64(segment.Size))
		if pulled == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				return false, nil
			}

			return false, err
		}
	}

	return true, nil
}

// Read implements Source, satisfying the spec's observation that a Buffer
// (and, symmetrically, a BufferedSource) is an ordinary stream in its own
// right.
func (s *BufferedSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	if s.buf.IsEmpty() {
		ok, err := s.request(ctx, 1)
		if err != nil {
			return 0, err
		}

		if !ok {
			return 0, io.EOF
		}
	}

	n := byteCount
	if avail := s.buf.Size(); n > avail {
		n = avail
	}

	if err := dst.Write(ctx, s.buf, n); err != nil {
		return 0, err
	}

	return n, nil
}

func (s *BufferedSource) Timeout() deadline.Timeout { return s.delegate.Timeout() }

func (s *BufferedSource) readExact(ctx context.Context, n int) ([]byte, error) {
	if err := s.Require(ctx, int64(n)); err != nil {
		return nil, err
	}

	p := make([]byte, n)
	s.buf.ReadBytes(p)

	return p, nil
}

// ReadUTF8 reads exactly byteCount bytes and returns them as a string.
func (s *BufferedSource) ReadUTF8(ctx context.Context, byteCount int64) (string, error) {
	p, err := s.readExact(ctx, int(byteCount))
	if err != nil {
		return "", err
	}

	return string(p), nil
}

// ReadByteString reads exactly byteCount bytes and returns them as a
// bytestring.ByteString, consuming them from the source. The consuming
// counterpart to Peek, which reads without consuming.
func (s *BufferedSource) ReadByteString(ctx context.Context, byteCount int64) (bytestring.ByteString, error) {
	if err := s.Require(ctx, byteCount); err != nil {
		return bytestring.ByteString{}, err
	}

	return bytestring.ReadFromBuffer(s.buf, byteCount)
}

// ReadByte reads a single byte.
func (s *BufferedSource) ReadByte(ctx context.Context) (byte, error) {
	p, err := s.readExact(ctx, 1)
	if err != nil {
		return 0, err
	}

	return p[0], nil
}

// ReadShort reads a big-endian signed 16-bit integer.
func (s *BufferedSource) ReadShort(ctx context.Context) (int16, error) {
	p, err := s.readExact(ctx, 2)
	if err != nil {
		return 0, err
	}

	return int16(binary.BigEndian.Uint16(p)), nil
}

// ReadShortLE reads a little-endian signed 16-bit integer.
func (s *BufferedSource) ReadShortLE(ctx context.Context) (int16, error) {
	p, err := s.readExact(ctx, 2)
	if err != nil {
		return 0, err
	}

	return int16(binary.LittleEndian.Uint16(p)), nil
}

// ReadInt reads a big-endian signed 32-bit integer.
func (s *BufferedSource) ReadInt(ctx context.Context) (int32, error) {
	p, err := s.readExact(ctx, 4)
	if err != nil {
		return 0, err
	}

	return int32(binary.BigEndian.Uint32(p)), nil
}

// ReadIntLE reads a little-endian signed 32-bit integer.
func (s *BufferedSource) ReadIntLE(ctx context.Context) (int32, error) {
	p, err := s.readExact(ctx, 4)
	if err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(p)), nil
}

// ReadLong reads a big-endian signed 64-bit integer.
func (s *BufferedSource) ReadLong(ctx context.Context) (int64, error) {
	p, err := s.readExact(ctx, 8)
	if err != nil {
		return 0, err
	}

	return int64(binary.BigEndian.Uint64(p)), nil
}

// ReadLongLE reads a little-endian signed 64-bit integer.
func (s *BufferedSource) ReadLongLE(ctx context.Context) (int64, error) {
	p, err := s.readExact(ctx, 8)
	if err != nil {
		return 0, err
	}

	return int64(binary.LittleEndian.Uint64(p)), nil
}

// ReadUTF8Line scans for '\n' and returns the preceding text with a single
// preceding '\r' stripped. Returns ok=false at end of input with nothing
// left to return.
func (s *BufferedSource) ReadUTF8Line(ctx context.Context) (string, bool, error) {
	idx, err := s.IndexOfByte(ctx, '\n', 0, math.MaxInt64)
	if err != nil {
		return "", false, err
	}

	if idx < 0 {
		if s.buf.IsEmpty() {
			return "", false, nil
		}

		p := make([]byte, s.buf.Size())
		s.buf.ReadBytes(p)

		return string(p), true, nil
	}

	line, err := s.readExact(ctx, int(idx))
	if err != nil {
		return "", false, err
	}

	s.buf.ReadBytes(make([]byte, 1)) // consume the '\n'
	line = trimTrailingCR(line)

	return string(line), true, nil
}

// ReadUTF8LineStrict is like ReadUTF8Line, but fails unless the line,
// without its "\n" or "\r\n" terminator, is at most limit bytes long.
func (s *BufferedSource) ReadUTF8LineStrict(ctx context.Context, limit int64) (string, error) {
	idx, err := s.IndexOfByte(ctx, '\n', 0, limit+1)
	if err != nil {
		return "", err
	}

	if idx < 0 {
		// a line of exactly limit bytes may still end in "\r\n".
		ok, err := s.request(ctx, limit+2)
		if err != nil {
			return "", err
		}

		if ok && bytes.Equal(s.peekBytes(limit, 2), []byte("\r\n")) {
			idx = limit + 1
		}
	}

	if idx < 0 {
		return "", ioerr.Protocolf("stream: no line terminator within %d bytes", limit)
	}

	line, err := s.readExact(ctx, int(idx))
	if err != nil {
		return "", err
	}

	s.buf.ReadBytes(make([]byte, 1))

	return string(trimTrailingCR(line)), nil
}

func trimTrailingCR(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		return line[:len(line)-1]
	}

	return line
}

// ReadDecimalLong parses an ASCII decimal integer, with an optional
// leading '-', failing on overflow or if there is no digit to read.
func (s *BufferedSource) ReadDecimalLong(ctx context.Context) (int64, error) {
	if err := s.Require(ctx, 1); err != nil {
		return 0, err
	}

	neg := false
	if b, ok, err := s.tryPeekByte(ctx); err != nil {
		return 0, err
	} else if ok && b == '-' {
		neg = true
		s.discard1()
	}

	var value int64

	digits := 0
	overflow := false

	for {
		b, ok, err := s.tryPeekByte(ctx)
		if err != nil {
			return 0, err
		}

		if !ok || b < '0' || b > '9' {
			break
		}

		s.discard1()

		d := int64(b - '0')
		if value > (math.MaxInt64-d)/10 {
			overflow = true
		}

		value = value*10 + d
		digits++
	}

	if digits == 0 {
		return 0, ioerr.Protocolf("stream: expected a decimal digit")
	}

	if overflow {
		return 0, ioerr.Protocolf("stream: decimal value overflows int64")
	}

	if neg {
		value = -value
	}

	return value, nil
}

// ReadHexUnsignedLong parses an ASCII hex integer, failing if it would
// exceed 16 digits.
func (s *BufferedSource) ReadHexUnsignedLong(ctx context.Context) (uint64, error) {
	if err := s.Require(ctx, 1); err != nil {
		return 0, err
	}

	var value uint64

	digits := 0

	for {
		b, ok, err := s.tryPeekByte(ctx)
		if err != nil {
			return 0, err
		}

		d, isHex := hexDigit(b)
		if !ok || !isHex {
			break
		}

		if digits == 16 {
			return 0, ioerr.Protocolf("stream: hex value exceeds 16 digits")
		}

		s.discard1()
		value = value<<4 | d
		digits++
	}

	if digits == 0 {
		return 0, ioerr.Protocolf("stream: expected a hex digit")
	}

	return value, nil
}

func hexDigit(b byte) (uint64, bool) {
	switch {
	case b >= '0' && b <= '9':
		return uint64(b - '0'), true
	case b >= 'a' && b <= 'f':
		return uint64(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return uint64(b-'A') + 10, true
	default:
		return 0, false
	}
}

func (s *BufferedSource) tryPeekByte(ctx context.Context) (byte, bool, error) {
	ok, err := s.request(ctx, 1)
	if err != nil || !ok {
		return 0, false, err
	}

	return s.buf.Segments()[0][0], true, nil
}

func (s *BufferedSource) discard1() {
	s.buf.ReadBytes(make([]byte, 1))
}

// IndexOfByte returns the offset of the first occurrence of b within
// [from, to), pulling more from the delegate as needed, or -1 if b does
// not occur before to or before the delegate is exhausted.
func (s *BufferedSource) IndexOfByte(ctx context.Context, b byte, from, to int64) (int64, error) {
	if from < 0 || to < from {
		return -1, errors.New("stream: invalid index_of range")
	}

	for {
		avail := s.buf.Size()
		limit := avail
		if to < limit {
			limit = to
		}

		if idx, found := scanSegments(s.buf.Segments(), b, from, limit); found {
			return idx, nil
		}

		if avail >= to {
			return -1, nil
		}

		pulled, err := s.delegate.Read(ctx, s.buf, int64(segment.Size))
		if pulled == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				return -1, nil
			}

			return -1, err
		}
	}
}

func scanSegments(segs [][]byte, target byte, from, to int64) (int64, bool) {
	var pos int64

	for _, seg := range segs {
		segLen := int64(len(seg))
		segStart, segEnd := pos, pos+segLen
		pos = segEnd

		if segEnd <= from || segStart >= to {
			continue
		}

		start := int64(0)
		if from > segStart {
			start = from - segStart
		}

		end := segLen
		if to < segEnd {
			end = to - segStart
		}

		if idx := bytes.IndexByte(seg[start:end], target); idx >= 0 {
			return segStart + start + int64(idx), true
		}
	}

	return 0, false
}

// IndexOfBytes searches for pattern, backtracking correctly across
// segment boundaries, pulling more from the delegate as needed.
func (s *BufferedSource) IndexOfBytes(ctx context.Context, pattern []byte) (int64, error) {
	if len(pattern) == 0 {
		return 0, nil
	}

	var from int64

	for {
		idx, err := s.IndexOfByte(ctx, pattern[0], from, math.MaxInt64)
		if err != nil {
			return -1, err
		}

		if idx < 0 {
			return -1, nil
		}

		ok, err := s.request(ctx, idx+int64(len(pattern)))
		if err != nil {
			return -1, err
		}

		if !ok {
			return -1, nil
		}

		if s.matchesAt(idx, pattern) {
			return idx, nil
		}

		from = idx + 1
	}
}

func (s *BufferedSource) matchesAt(offset int64, pattern []byte) bool {
	var pos int64

	pi := 0

	for _, seg := range s.buf.Segments() {
		segLen := int64(len(seg))
		segEnd := pos + segLen

		if segEnd > offset {
			start := int64(0)
			if offset > pos {
				start = offset - pos
			}

			for i := int(start); i < len(seg) && pi < len(pattern); i++ {
				if seg[i] != pattern[pi] {
					return false
				}

				pi++
			}

			if pi == len(pattern) {
				return true
			}
		}

		pos = segEnd
	}

	return pi == len(pattern)
}

// Select matches the buffered input against options in order and returns
// the index of the first one the input starts with, consuming it; -1 if
// none match.
func (s *BufferedSource) Select(ctx context.Context, options []bytestring.ByteString) (int, error) {
	for i, opt := range options {
		n := int64(opt.Len())

		ok, err := s.request(ctx, n)
		if err != nil {
			return -1, err
		}

		if !ok {
			continue
		}

		if bytes.Equal(s.peekBytes(0, n), opt.Bytes()) {
			if _, err := s.readExact(ctx, int(n)); err != nil {
				return -1, err
			}

			return i, nil
		}
	}

	return -1, nil
}

func (s *BufferedSource) peekBytes(offset, n int64) []byte {
	out := make([]byte, n)

	var pos int64

	oi := int64(0)

	for _, seg := range s.buf.Segments() {
		segLen := int64(len(seg))
		segEnd := pos + segLen

		if segEnd > offset {
			start := int64(0)
			if offset > pos {
				start = offset - pos
			}

			for i := start; i < segLen && oi < n; i++ {
				out[oi] = seg[i]
				oi++
			}
		}

		pos = segEnd

		if oi >= n {
			break
		}
	}

	return out[:oi]
}

// PeekAt ensures offset+n bytes are buffered where possible and returns a
// copy of bytes[offset:offset+n) without consuming them. Returns io.EOF
// only when no bytes at all remain past offset.
func (s *BufferedSource) PeekAt(ctx context.Context, offset, n int64) ([]byte, error) {
	ok, err := s.request(ctx, offset+n)
	if err != nil {
		return nil, err
	}

	if !ok {
		avail := s.buf.Size() - offset
		if avail <= 0 {
			return nil, io.EOF
		}

		n = avail
	}

	return s.peekBytes(offset, n), nil
}

// Peek returns a new BufferedSource reading the same bytes as s without
// consuming them from s. It becomes invalid once s is consumed past the
// peek's current position.
func (s *BufferedSource) Peek() *BufferedSource {
	return NewBufferedSource(&peekDelegate{origin: s}, nil)
}

type peekDelegate struct {
	origin *BufferedSource
	pos    int64
}

func (p *peekDelegate) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	data, err := p.origin.PeekAt(ctx, p.pos, byteCount)
	if err != nil {
		return 0, err
	}

	dst.WriteBytes(data)
	p.pos += int64(len(data))

	return int64(len(data)), nil
}

func (p *peekDelegate) Timeout() deadline.Timeout { return p.origin.Timeout() }
