package watchdog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/ioerr"
	"github.com/segbuf/segbuf/stream"
)

// DefaultWriteChunk bounds how many bytes timeoutSink writes per enter/exit
// pair, so a slow-but-progressing writer is never canceled mid-write.
const DefaultWriteChunk = 64 * 1024

// Sink wraps s so that every Write is split into chunks of at most
// chunkSize bytes, each watched by its own fresh AsyncTimeout, so a large
// write doesn't let one slow chunk consume the whole timeout budget meant
// for the operation as a whole. A chunkSize <= 0 uses DefaultWriteChunk.
// Closing the underlying resource on timeout is the caller's
// responsibility: onTimeout should do that, typically by closing s or the
// transport s wraps.
func Sink(s stream.Sink, onTimeout func(), chunkSize int) stream.Sink {
	if chunkSize <= 0 {
		chunkSize = DefaultWriteChunk
	}

	return &timeoutSink{delegate: s, onTimeout: onTimeout, chunkSize: int64(chunkSize)}
}

type timeoutSink struct {
	delegate  stream.Sink
	onTimeout func()
	chunkSize int64
}

func (t *timeoutSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	for byteCount > 0 {
		chunk := byteCount
		if chunk > t.chunkSize {
			chunk = t.chunkSize
		}

		if err := t.writeChunk(ctx, src, chunk); err != nil {
			return err
		}

		byteCount -= chunk
	}

	return nil
}

func (t *timeoutSink) writeChunk(ctx context.Context, src *buffer.Buffer, chunk int64) error {
	n := NewAsyncTimeout(t.onTimeout)

	dl := t.delegate.Timeout()

	var (
		hasDL bool
		at    time.Time
	)

	if dl != nil && dl.HasDeadline() {
		hasDL = true
		at = dl.Deadline()
	}

	if err := n.Enter(0, at, hasDL); err != nil {
		return errors.Wrap(err, "watchdog: enter")
	}

	writeErr := t.delegate.Write(ctx, src, chunk)

	if n.Exit() {
		return ioerr.Timeout(writeErr)
	}

	return writeErr
}

func (t *timeoutSink) Flush(ctx context.Context) error { return t.delegate.Flush(ctx) }
func (t *timeoutSink) Close() error                    { return t.delegate.Close() }
func (t *timeoutSink) Timeout() deadline.Timeout       { return t.delegate.Timeout() }
