package stream_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/bytestring"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/segment"
	"github.com/segbuf/segbuf/stream"
)

func newStreamPool() *segment.Pool { return segment.NewPool(2, 16*segment.Size) }

// chunkedSource serves fixed-size chunks of a fixed byte slice, one per
// Read call, to exercise BufferedSource's pull loop across several rounds.
type chunkedSource struct {
	data      []byte
	chunkSize int
	pos       int
}

func (c *chunkedSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}

	end := c.pos + c.chunkSize
	if end > len(c.data) {
		end = len(c.data)
	}

	chunk := c.data[c.pos:end]
	dst.WriteBytes(chunk)
	c.pos = end

	return int64(len(chunk)), nil
}

func (c *chunkedSource) Timeout() deadline.Timeout { return deadline.None }

func newChunkedSource(data string, chunkSize int) *chunkedSource {
	return &chunkedSource{data: []byte(data), chunkSize: chunkSize}
}

func TestBufferedSourceRequireAndReadByte(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("AB", 1), newStreamPool())

	require.NoError(t, src.Require(ctx, 2))

	b1, err := src.ReadByte(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('A'), b1)

	b2, err := src.ReadByte(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('B'), b2)

	require.ErrorIs(t, src.Require(ctx, 1), ioerr.ErrEndOfInput)
}

func TestBufferedSourceRequestReturnsFalseAtEOF(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("hi", 2), newStreamPool())

	ok, err := src.Request(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = src.Request(ctx, 3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBufferedSourceShortAndIntAndLong(t *testing.T) {
	ctx := context.Background()
	payload := []byte{
		0xAB,
		0xCD, 0xEF,
		0x00, 0x00, 0x01, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2A,
	}
	src := stream.NewBufferedSource(&chunkedSource{data: payload, chunkSize: 4}, newStreamPool())

	b, err := src.ReadByte(ctx)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), b)

	short, err := src.ReadShort(ctx)
	require.NoError(t, err)
	require.Equal(t, int16(-12817), short) // bytes CD EF as a signed 16-bit value

	intVal, err := src.ReadInt(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(0x0102), intVal)

	longVal, err := src.ReadLong(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0x2A), longVal)
}

func TestBufferedSourceReadUTF8Line(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("first\r\nsecond\nlast", 3), newStreamPool())

	line, ok, err := src.ReadUTF8Line(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first", line)

	line, ok, err = src.ReadUTF8Line(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", line)

	line, ok, err = src.ReadUTF8Line(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "last", line)

	_, ok, err = src.ReadUTF8Line(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBufferedSourceReadUTF8LineStrict(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("12345\r\n", 7), newStreamPool())

	line, err := src.ReadUTF8LineStrict(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, "12345", line)
}

func TestBufferedSourceReadUTF8LineStrictFailsBeyondLimit(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("toolongline\n", 12), newStreamPool())

	_, err := src.ReadUTF8LineStrict(ctx, 4)
	require.Error(t, err)
}

func TestBufferedSourceReadDecimalLong(t *testing.T) {
	ctx := context.Background()

	src := stream.NewBufferedSource(newChunkedSource("-4200 ", 2), newStreamPool())
	v, err := src.ReadDecimalLong(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(-4200), v)
}

func TestBufferedSourceReadHexUnsignedLong(t *testing.T) {
	ctx := context.Background()

	src := stream.NewBufferedSource(newChunkedSource("1a2b3c ", 3), newStreamPool())
	v, err := src.ReadHexUnsignedLong(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1a2b3c), v)
}

func TestBufferedSourceIndexOfByteAcrossReads(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("aaaaaaaaaaX", 2), newStreamPool())

	idx, err := src.IndexOfByte(ctx, 'X', 0, 1<<30)
	require.NoError(t, err)
	require.Equal(t, int64(10), idx)
}

func TestBufferedSourceIndexOfBytesStraddlesReads(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("abcneedlexyz", 4), newStreamPool())

	idx, err := src.IndexOfBytes(ctx, []byte("needle"))
	require.NoError(t, err)
	require.Equal(t, int64(3), idx)
}

func TestBufferedSourceIndexOfBytesNotFound(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("no match here", 5), newStreamPool())

	idx, err := src.IndexOfBytes(ctx, []byte("zzz"))
	require.NoError(t, err)
	require.Equal(t, int64(-1), idx)
}

func TestBufferedSourceSelectMatchesOption(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("cat", 3), newStreamPool())

	opts := []bytestring.ByteString{
		bytestring.FromBytes([]byte("dog")),
		bytestring.FromBytes([]byte("cat")),
	}

	idx, err := src.Select(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, 1, idx)
}

func TestBufferedSourceSelectNoMatch(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("fish", 4), newStreamPool())

	opts := []bytestring.ByteString{bytestring.FromBytes([]byte("cat")), bytestring.FromBytes([]byte("dog"))}

	idx, err := src.Select(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, -1, idx)
}

func TestBufferedSourcePeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("peek me", 3), newStreamPool())

	peeked := src.Peek()

	first, err := peeked.ReadByte(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('p'), first)

	origFirst, err := src.ReadByte(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('p'), origFirst)
}

func TestBufferedSourceAsRawSource(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("hello world", 4), newStreamPool())

	dst := buffer.New(newStreamPool())
	n, err := src.Read(ctx, dst, 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	out := make([]byte, 5)
	dst.ReadBytes(out)
	require.Equal(t, "hello", string(out))
}

func TestBufferedSourceByteShortThenLongUTF8RunDrainsToEmpty(t *testing.T) {
	ctx := context.Background()

	payload := append([]byte{0xAB, 0xCD, 0xEF}, bytesOf('a', 10000)...)
	src := stream.NewBufferedSource(newChunkedSource(string(payload), 4096), newStreamPool())

	b, err := src.ReadByte(ctx)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), b)

	short, err := src.ReadShort(ctx)
	require.NoError(t, err)
	require.Equal(t, int16(-12817), short) // bytes CD EF as a signed 16-bit value

	s, err := src.ReadUTF8(ctx, 10000)
	require.NoError(t, err)
	require.Len(t, s, 10000)

	for i := range s {
		if s[i] != 'a' {
			t.Fatalf("byte %d of read_utf8 run = %q, want 'a'", i, s[i])
		}
	}

	require.Equal(t, int64(0), src.Buffer().Size())
}

func TestBufferedSourceReadByteStringConsumesAndMatchesHex(t *testing.T) {
	ctx := context.Background()
	src := stream.NewBufferedSource(newChunkedSource("\x01\x02\xab\xcd\xef", 2), newStreamPool())

	bs, err := src.ReadByteString(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, "0102abcdef", bs.Hex())

	require.Equal(t, int64(0), src.Buffer().Size())
}

func bytesOf(b byte, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = b
	}

	return p
}
