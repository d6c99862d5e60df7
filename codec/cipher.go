package codec

import (
	"context"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/stream"
)

// CipherBlockSize bounds how many plaintext bytes are sealed into a single
// AEAD frame; each frame is staged in one segment before encryption, so
// this must leave room for the frame's length prefix and authentication
// tag within segment.Size.
const CipherBlockSize = 8192 - 64

const frameHeaderLen = 4

// DeriveKey expands secret into a chacha20poly1305 key via HKDF-SHA256.
func DeriveKey(secret, salt, info []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), key); err != nil {
		return nil, errors.Wrap(err, "codec: derive cipher key")
	}

	return key, nil
}

// CipherSink seals each bounded block of plaintext into an independent
// AEAD frame (4-byte big-endian length prefix + ciphertext + tag) with a
// monotonically increasing nonce counter, and writes the frames to
// delegate.
type CipherSink struct {
	delegate stream.Sink
	aead     cipher.AEAD
	out      *buffer.Buffer
	seq      uint64
}

// NewCipherSink returns a CipherSink sealing with key (see DeriveKey) and
// writing framed ciphertext to delegate.
func NewCipherSink(delegate stream.Sink, key []byte, out *buffer.Buffer) (*CipherSink, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "codec: new AEAD")
	}

	return &CipherSink{delegate: delegate, aead: aead, out: out}, nil
}

func (c *CipherSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	for byteCount > 0 {
		chunk := byteCount
		if chunk > CipherBlockSize {
			chunk = CipherBlockSize
		}

		plaintext := make([]byte, chunk)
		if n := src.ReadBytes(plaintext); int64(n) != chunk {
			return ioerr.Protocolf("codec: short read staging cipher input (%d of %d)", n, chunk)
		}

		sealed := c.aead.Seal(nil, c.nonce(), plaintext, nil)

		var header [frameHeaderLen]byte
		binary.BigEndian.PutUint32(header[:], uint32(len(sealed)))

		c.out.WriteBytes(header[:])
		c.out.WriteBytes(sealed)

		if err := c.delegate.Write(ctx, c.out, c.out.Size()); err != nil {
			return err
		}

		c.seq++
		byteCount -= chunk
	}

	return nil
}

func (c *CipherSink) nonce() []byte {
	n := make([]byte, c.aead.NonceSize())
	binary.BigEndian.PutUint64(n[len(n)-8:], c.seq)

	return n
}

func (c *CipherSink) Flush(ctx context.Context) error { return c.delegate.Flush(ctx) }
func (c *CipherSink) Close() error                    { return c.delegate.Close() }
func (c *CipherSink) Timeout() deadline.Timeout       { return c.delegate.Timeout() }

// CipherSource reverses CipherSink: reads length-prefixed AEAD frames from
// delegate, in order, and appends their decrypted plaintext to dst.
type CipherSource struct {
	delegate stream.Source
	aead     cipher.AEAD
	reader   *sourceIOReader
	seq      uint64
}

// NewCipherSource returns a CipherSource opening frames with key, pulling
// pullLen bytes of framed ciphertext at a time from delegate.
func NewCipherSource(ctx context.Context, delegate stream.Source, key []byte, pullLen int64, staging *buffer.Buffer) (*CipherSource, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "codec: new AEAD")
	}

	r := &sourceIOReader{ctx: ctx, src: delegate, staging: staging, pullLen: pullLen}

	return &CipherSource{delegate: delegate, aead: aead, reader: r}, nil
}

// Read ignores byteCount: a frame cannot be partially authenticated, so it
// always returns one whole decrypted frame.
func (c *CipherSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	c.reader.ctx = ctx

	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(c.reader, header[:]); err != nil {
		return 0, err
	}

	frameLen := binary.BigEndian.Uint32(header[:])
	sealed := make([]byte, frameLen)

	if _, err := io.ReadFull(c.reader, sealed); err != nil {
		return 0, errors.Wrap(err, "codec: truncated cipher frame")
	}

	nonce := make([]byte, c.aead.NonceSize())
	binary.BigEndian.PutUint64(nonce[len(nonce)-8:], c.seq)
	c.seq++

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return 0, errors.Wrap(err, "codec: cipher frame authentication failed")
	}

	dst.WriteBytes(plaintext)

	return int64(len(plaintext)), nil
}

func (c *CipherSource) Timeout() deadline.Timeout { return c.delegate.Timeout() }
