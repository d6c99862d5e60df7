package stream_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/segment"
	"github.com/segbuf/segbuf/stream"
)

// recordingSink accumulates every byteCount passed to Write, so tests can
// assert on the emit discipline (how much gets flushed and when).
type recordingSink struct {
	buf    *buffer.Buffer
	writes []int64
	closed bool
}

func newRecordingSink(pool *segment.Pool) *recordingSink {
	return &recordingSink{buf: buffer.New(pool)}
}

func (r *recordingSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	r.writes = append(r.writes, byteCount)
	return r.buf.Write(ctx, src, byteCount)
}

func (r *recordingSink) Flush(context.Context) error { return nil }
func (r *recordingSink) Close() error                { r.closed = true; return nil }
func (r *recordingSink) Timeout() deadline.Timeout   { return deadline.None }

func TestBufferedSinkEmitCompleteSegmentsKeepsTailBuffered(t *testing.T) {
	ctx := context.Background()
	pool := newStreamPool()
	delegate := newRecordingSink(pool)
	sink := stream.NewBufferedSink(delegate, pool)

	full := make([]byte, segment.Size)
	for i := range full {
		full[i] = byte(i)
	}

	require.NoError(t, sink.WriteUTF8(ctx, string(full)))
	require.NoError(t, sink.WriteByte(ctx, 'x'))

	require.Equal(t, int64(segment.Size), delegate.buf.Size())
}

func TestBufferedSinkEmitFlushesEverything(t *testing.T) {
	ctx := context.Background()
	pool := newStreamPool()
	delegate := newRecordingSink(pool)
	sink := stream.NewBufferedSink(delegate, pool)

	require.NoError(t, sink.WriteUTF8(ctx, "small"))
	require.NoError(t, sink.Emit(ctx))

	require.Equal(t, int64(5), delegate.buf.Size())
}

func TestBufferedSinkIntegersRoundTripThroughBufferedSource(t *testing.T) {
	ctx := context.Background()
	pool := newStreamPool()
	delegate := newRecordingSink(pool)
	sink := stream.NewBufferedSink(delegate, pool)

	require.NoError(t, sink.WriteShort(ctx, -5))
	require.NoError(t, sink.WriteIntLE(ctx, 123456))
	require.NoError(t, sink.Close())

	src := stream.NewBufferedSource(&bufferSource{delegate.buf}, pool)

	short, err := src.ReadShort(ctx)
	require.NoError(t, err)
	require.Equal(t, int16(-5), short)

	intVal, err := src.ReadIntLE(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(123456), intVal)
}

// bufferSource adapts a *buffer.Buffer to stream.Source so tests can feed
// a BufferedSink's output straight into a BufferedSource.
type bufferSource struct{ buf *buffer.Buffer }

func (b *bufferSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	return b.buf.Read(ctx, dst, byteCount)
}

func (b *bufferSource) Timeout() deadline.Timeout { return deadline.None }

func TestBufferedSinkCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := newStreamPool()
	delegate := newRecordingSink(pool)
	sink := stream.NewBufferedSink(delegate, pool)

	require.NoError(t, sink.WriteUTF8(ctx, "bye"))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	require.True(t, delegate.closed)
}
