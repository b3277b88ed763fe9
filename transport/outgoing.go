package transport

import (
	"errors"
	"io"

	"github.com/eapache/queue"

	"github.com/gossip-lsp/lspframe/readiness"
)

var errInvalidWrite = errors.New("transport: writer returned invalid count")

// OutgoingBuffer queues encoded frames and writes them in FIFO order as the
// handle accepts bytes. A partially written frame resumes at the exact offset
// on the next Drain. It is not safe for concurrent use.
type OutgoingBuffer struct {
	q       *queue.Queue
	off     int // bytes of the front item already written
	pending int
}

// NewOutgoingBuffer creates an empty buffer.
func NewOutgoingBuffer() *OutgoingBuffer {
	return &OutgoingBuffer{q: queue.New()}
}

// Enqueue appends p to the tail. It never blocks. p must not be modified
// afterwards.
func (b *OutgoingBuffer) Enqueue(p []byte) {
	if len(p) == 0 {
		return
	}
	b.q.Add(p)
	b.pending += len(p)
}

// Len reports the number of queued items, including a partially written one.
func (b *OutgoingBuffer) Len() int { return b.q.Length() }

// Pending reports the number of bytes not yet written.
func (b *OutgoingBuffer) Pending() int { return b.pending }

// Drain writes queued bytes to w until w stops accepting them. A short write
// or readiness.ErrWouldBlock ends the call without error. Other write errors
// are returned along with the bytes written before them.
func (b *OutgoingBuffer) Drain(w io.Writer) (int, error) {
	total := 0
	for b.q.Length() > 0 {
		front := b.q.Peek().([]byte)
		rest := front[b.off:]
		n, err := w.Write(rest)
		if n < 0 || n > len(rest) {
			return total, errInvalidWrite
		}
		total += n
		b.off += n
		b.pending -= n
		if b.off == len(front) {
			b.q.Remove()
			b.off = 0
		}
		if err != nil {
			if errors.Is(err, readiness.ErrWouldBlock) {
				return total, nil
			}
			return total, err
		}
		if n < len(rest) {
			return total, nil
		}
	}
	return total, nil
}
