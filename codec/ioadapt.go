// Package codec implements the engine's forwarding/decorating streams:
// Deflate/Inflate, Gzip, Cipher, Hashing, and Throttler, each layered over a
// raw stream.Source or stream.Sink.
//
// Grounded on blob/limit.go's write-limiting Storage wrapper for the
// "decorator holds a delegate plus its own bookkeeping" shape, generalized
// from counting bytes to transforming them.
package codec

import (
	"context"
	"io"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/stream"
)

// bufferIOWriter adapts a *buffer.Buffer to io.Writer, for feeding
// compression/cipher engines that only know stdlib io.
type bufferIOWriter struct{ buf *buffer.Buffer }

func (w bufferIOWriter) Write(p []byte) (int, error) {
	return w.buf.WriteBytes(p), nil
}

// sourceIOReader adapts a stream.Source to io.Reader by pulling one
// segment's worth of bytes at a time into an internal staging Buffer and
// draining from there.
type sourceIOReader struct {
	ctx     context.Context
	src     stream.Source
	staging *buffer.Buffer
	pullLen int64
}

func (r *sourceIOReader) Read(p []byte) (int, error) {
	if r.staging.IsEmpty() {
		n, err := r.src.Read(r.ctx, r.staging, r.pullLen)
		if n == 0 && err != nil {
			return 0, err
		}
	}

	return r.staging.ReadBytes(p), nil
}

var _ io.Writer = bufferIOWriter{}
var _ io.Reader = (*sourceIOReader)(nil)
