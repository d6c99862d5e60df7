package codec

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/segment"
	"github.com/segbuf/segbuf/stream"
)

// HashAlgorithm names a digest algorithm usable by HashingSink/HashingSource.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	SHA512 HashAlgorithm = "sha512"
	MD5    HashAlgorithm = "md5"
	XXHash HashAlgorithm = "xxhash"
	Blake3 HashAlgorithm = "blake3"
)

func newHash(alg HashAlgorithm) (hash.Hash, error) {
	switch alg {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case MD5:
		return md5.New(), nil
	case XXHash:
		return xxhash.New(), nil
	case Blake3:
		return blake3.New(), nil
	default:
		return nil, errors.Errorf("codec: unknown hash algorithm %q", alg)
	}
}

// HashingSink tees every byte written through to delegate while feeding a
// running digest. Sum reports the digest of everything written so far;
// Reset clears it back to the algorithm's initial state without touching
// delegate.
type HashingSink struct {
	delegate stream.Sink
	h        hash.Hash
	pool     *segment.Pool
}

// NewHashingSink returns a HashingSink computing alg over bytes written to
// delegate.
func NewHashingSink(delegate stream.Sink, alg HashAlgorithm, pool *segment.Pool) (*HashingSink, error) {
	h, err := newHash(alg)
	if err != nil {
		return nil, err
	}

	return &HashingSink{delegate: delegate, h: h, pool: pool}, nil
}

func (hs *HashingSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	raw := make([]byte, byteCount)
	if n := src.ReadBytes(raw); int64(n) != byteCount {
		return ioerr.Protocolf("codec: short read staging hash input (%d of %d)", n, byteCount)
	}

	hs.h.Write(raw)

	scratch := buffer.New(hs.pool)
	scratch.WriteBytes(raw)

	return hs.delegate.Write(ctx, scratch, byteCount)
}

// Sum returns the digest of everything written so far, without resetting.
func (hs *HashingSink) Sum() []byte { return hs.h.Sum(nil) }

// Reset clears the running digest back to its initial state.
func (hs *HashingSink) Reset() { hs.h.Reset() }

func (hs *HashingSink) Flush(ctx context.Context) error { return hs.delegate.Flush(ctx) }
func (hs *HashingSink) Close() error                    { return hs.delegate.Close() }
func (hs *HashingSink) Timeout() deadline.Timeout       { return hs.delegate.Timeout() }

// HashingSource tees every byte read from delegate through a running
// digest.
type HashingSource struct {
	delegate stream.Source
	h        hash.Hash
}

// NewHashingSource returns a HashingSource computing alg over bytes read
// from delegate.
func NewHashingSource(delegate stream.Source, alg HashAlgorithm) (*HashingSource, error) {
	h, err := newHash(alg)
	if err != nil {
		return nil, err
	}

	return &HashingSource{delegate: delegate, h: h}, nil
}

func (hs *HashingSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	before := dst.Size()

	n, err := hs.delegate.Read(ctx, dst, byteCount)
	if n > 0 {
		tail := make([]byte, n)
		segs := dst.Segments()
		copyTailInto(tail, segs, before)
		hs.h.Write(tail)
	}

	return n, err
}

// copyTailInto copies the bytes appended after offset (the buffer's size
// before the read) out of segs, the buffer's segment snapshot, into dst.
func copyTailInto(dst []byte, segs [][]byte, offset int64) {
	var walked int64

	pos := 0
	for _, s := range segs {
		segLen := int64(len(s))
		if walked+segLen <= offset {
			walked += segLen
			continue
		}

		start := int64(0)
		if offset > walked {
			start = offset - walked
		}

		pos += copy(dst[pos:], s[start:])
		walked += segLen
	}
}

func (hs *HashingSource) Sum() []byte           { return hs.h.Sum(nil) }
func (hs *HashingSource) Reset()                { hs.h.Reset() }
func (hs *HashingSource) Timeout() deadline.Timeout { return hs.delegate.Timeout() }
