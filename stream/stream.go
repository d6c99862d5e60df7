// Package stream defines the two contracts the engine's decorators and
// buffered readers/writers are built on: a raw byte Source and a raw byte
// Sink, each backed by a caller-supplied Buffer. A Buffer itself satisfies
// both contracts (see the buffer package) — the spec treats that as an
// ordinary implementation, not a special case, and so does this package.
package stream

import (
	"context"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
)

// Source is a byte producer. Read appends up to byteCount bytes to dst's
// tail and returns how many bytes were appended, or io.EOF when the source
// is exhausted.
type Source interface {
	Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error)
	Timeout() deadline.Timeout
}

// Sink is a byte consumer. Write consumes exactly byteCount bytes from the
// head of src; callers must ensure src has at least that many bytes
// buffered.
type Sink interface {
	Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error
	Flush(ctx context.Context) error
	Close() error
	Timeout() deadline.Timeout
}
