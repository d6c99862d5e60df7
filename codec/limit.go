package codec

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/stream"
)

// ErrLimitExceeded is returned once a LimitedSink has written its quota of
// bytes.
var ErrLimitExceeded = errors.New("codec: write limit exceeded")

// LimitedSink caps the number of bytes written to delegate, grounded on
// the repo's write-limiting storage wrapper: once the quota is exhausted,
// further writes fail with ErrLimitExceeded instead of silently
// truncating.
type LimitedSink struct {
	delegate       stream.Sink
	remainingBytes int64
}

// NewLimitedSink returns a LimitedSink forwarding at most limitBytes total
// to delegate.
func NewLimitedSink(delegate stream.Sink, limitBytes int64) *LimitedSink {
	return &LimitedSink{delegate: delegate, remainingBytes: limitBytes}
}

func (s *LimitedSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	if atomic.AddInt64(&s.remainingBytes, -byteCount) < 0 {
		return ErrLimitExceeded
	}

	return s.delegate.Write(ctx, src, byteCount)
}

func (s *LimitedSink) Flush(ctx context.Context) error { return s.delegate.Flush(ctx) }
func (s *LimitedSink) Close() error                    { return s.delegate.Close() }
func (s *LimitedSink) Timeout() deadline.Timeout       { return s.delegate.Timeout() }

// Remaining reports how many bytes may still be written before
// ErrLimitExceeded.
func (s *LimitedSink) Remaining() int64 { return atomic.LoadInt64(&s.remainingBytes) }
