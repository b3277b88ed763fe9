// Package transport moves LSP base-protocol frames over readiness-driven
// handles. A Transport watches its handle for readability, feeds what it
// reads to a frame.Decoder and delivers payloads; outgoing payloads are
// framed into an OutgoingBuffer that is flushed on writability.
//
// The package also provides handles for the usual LSP media: stdio, TCP,
// Unix domain sockets, named pipes, WebSocket and Node.js IPC, plus an
// in-memory pipe for tests.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/gossip-lsp/lspframe/frame"
	"github.com/gossip-lsp/lspframe/readiness"
)

// Conn is a readiness handle that owns an underlying resource.
type Conn interface {
	readiness.Handle
	io.Closer
}

// ReadPolicy selects how much a Transport reads per readable event.
type ReadPolicy int

const (
	// ReadOnce issues a single Read per readable event. Remaining data is
	// picked up on the next event.
	ReadOnce ReadPolicy = iota
	// ReadUntilBlocked reads until the handle reports ErrWouldBlock or end
	// of stream.
	ReadUntilBlocked
)

func (p ReadPolicy) String() string {
	if p == ReadUntilBlocked {
		return "until-blocked"
	}
	return "once"
}

// ParseReadPolicy parses "once" or "until-blocked".
func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch s {
	case "", "once":
		return ReadOnce, nil
	case "until-blocked":
		return ReadUntilBlocked, nil
	default:
		return 0, fmt.Errorf("transport: unknown read policy %q", s)
	}
}

// DefaultReadSize is the size of the buffer passed to each Read.
const DefaultReadSize = 64 * 1024

// Callbacks receive transport output. They run on the processing context.
type Callbacks struct {
	// OnMessage receives each decoded payload in arrival order. The slice is
	// owned by the callee.
	OnMessage func(payload []byte)
	// OnError receives the terminal failure, at most once.
	OnError func(err *Error)
	// OnClosed is called once when the peer ends the stream cleanly.
	OnClosed func()
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the transport logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithReadSize sets the maximum bytes requested per Read.
func WithReadSize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.readSize = n
		}
	}
}

// WithReadPolicy sets the per-event read policy (default ReadOnce).
func WithReadPolicy(p ReadPolicy) Option {
	return func(t *Transport) { t.policy = p }
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(t *Transport) {
		if o != nil {
			t.obs = o
		}
	}
}

// Transport frames and deframes payloads over a readiness handle.
//
// All state changes happen on the Dispatcher passed to New. Send and Close
// may be called from any goroutine; callbacks are invoked on the dispatcher.
// The handle is borrowed: closing the Transport does not close it.
type Transport struct {
	handle   readiness.Handle
	loop     readiness.Dispatcher
	source   *readiness.Source
	cb       Callbacks
	logger   *slog.Logger
	obs      Observer
	readSize int
	policy   ReadPolicy

	// Owned by the processing context.
	dec   *frame.Decoder
	out   *OutgoingBuffer
	rbuf  []byte
	ended bool

	readSub  atomic.Pointer[readiness.Subscription]
	writeSub atomic.Pointer[readiness.Subscription]
	started  atomic.Bool
	done     atomic.Bool
}

// New creates a Transport over h whose work runs on d. Call Start to begin
// reading.
func New(h readiness.Handle, d readiness.Dispatcher, cb Callbacks, opts ...Option) *Transport {
	t := &Transport{
		handle:   h,
		loop:     d,
		cb:       cb,
		logger:   slog.Default(),
		obs:      nopObserver{},
		readSize: DefaultReadSize,
		policy:   ReadOnce,
		dec:      frame.NewDecoder(),
		out:      NewOutgoingBuffer(),
	}
	for _, o := range opts {
		o(t)
	}
	t.source = readiness.NewSource(h, d, readiness.WithSourceLogger(t.logger))
	return t
}

// Start arms the read watch. It returns an error if the Transport was already
// started or its processing context is closed.
func (t *Transport) Start() error {
	if !t.started.CompareAndSwap(false, true) {
		return errors.New("transport: already started")
	}
	if !t.loop.Post(t.watchRead) {
		return ErrClosed
	}
	return nil
}

// Send frames payload and queues it for writing. It never blocks and never
// fails synchronously; write errors are reported through OnError. Sends
// after Close or a terminal failure are dropped.
func (t *Transport) Send(payload []byte) {
	if t.done.Load() {
		return
	}
	wire := frame.Encode(payload)
	size := len(payload)
	t.loop.Post(func() { t.enqueue(wire, size) })
}

// Close cancels both watches. No callback is invoked after Close returns when
// it is called on the processing context; from another goroutine, a callback
// already running may still complete. Close is idempotent.
func (t *Transport) Close() {
	t.done.Store(true)
	t.cancelWatches()
}

// Closed reports whether the Transport was closed or failed.
func (t *Transport) Closed() bool { return t.done.Load() }

// Pending reports the encoded bytes not yet written. Call it on the
// processing context.
func (t *Transport) Pending() int { return t.out.Pending() }

func (t *Transport) watchRead() {
	if t.done.Load() {
		return
	}
	sub, err := t.source.Watch(readiness.InterestRead, t.onRead)
	if err != nil {
		t.fail(&Error{Kind: KindIO, Op: "watch", Err: err})
		return
	}
	t.readSub.Store(sub)
	if t.done.Load() {
		sub.Cancel()
	}
}

func (t *Transport) onRead(ev readiness.Event) {
	if t.done.Load() || t.ended {
		return
	}
	switch ev {
	case readiness.Closed:
		t.endOfStream()
	case readiness.Readable:
		t.readAvailable()
	}
}

func (t *Transport) readAvailable() {
	if t.rbuf == nil {
		t.rbuf = make([]byte, t.readSize)
	}
	for {
		n, err := t.handle.Read(t.rbuf)
		if n > 0 {
			t.obs.BytesRead(n)
			payloads, derr := t.dec.Feed(t.rbuf[:n])
			for _, p := range payloads {
				if t.done.Load() {
					return
				}
				t.obs.MessageReceived(len(p))
				if t.cb.OnMessage != nil {
					t.cb.OnMessage(p)
				}
			}
			if derr != nil {
				t.fail(decodeError("decode", derr))
				return
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, readiness.ErrWouldBlock):
			return
		case errors.Is(err, io.EOF):
			t.endOfStream()
			return
		default:
			t.fail(&Error{Kind: KindIO, Op: "read", Err: err})
			return
		}
		if n == 0 || t.policy == ReadOnce || t.done.Load() {
			return
		}
	}
}

func (t *Transport) endOfStream() {
	if t.ended {
		return
	}
	t.ended = true
	if sub := t.readSub.Swap(nil); sub != nil {
		sub.Cancel()
	}
	if err := t.dec.Close(); err != nil {
		t.fail(decodeError("read", err))
		return
	}
	t.obs.StreamEnded()
	t.logger.Debug("transport stream ended")
	if t.cb.OnClosed != nil && !t.done.Load() {
		t.cb.OnClosed()
	}
}

func (t *Transport) enqueue(wire []byte, size int) {
	if t.done.Load() {
		return
	}
	t.out.Enqueue(wire)
	t.obs.MessageQueued(size, t.out.Pending())
	if t.writeSub.Load() != nil {
		return
	}
	sub, err := t.source.Watch(readiness.InterestWrite, t.onWrite)
	if err != nil {
		t.fail(&Error{Kind: KindIO, Op: "watch", Err: err})
		return
	}
	t.writeSub.Store(sub)
	if t.done.Load() {
		sub.Cancel()
	}
}

func (t *Transport) onWrite(readiness.Event) {
	if t.done.Load() {
		return
	}
	n, err := t.out.Drain(t.handle)
	if n > 0 {
		t.obs.BytesWritten(n)
	}
	if err != nil {
		t.fail(&Error{Kind: KindIO, Op: "write", Err: err})
		return
	}
	// An idle writable watch would fire on every poll.
	if t.out.Len() == 0 {
		if sub := t.writeSub.Swap(nil); sub != nil {
			sub.Cancel()
		}
	}
}

func (t *Transport) fail(err *Error) {
	if !t.done.CompareAndSwap(false, true) {
		return
	}
	t.obs.Failed(err)
	t.logger.Warn("transport failed",
		"kind", err.Kind.String(),
		"op", err.Op,
		"error", err.Err,
	)
	if t.cb.OnError != nil {
		t.cb.OnError(err)
	}
	t.cancelWatches()
}

func (t *Transport) cancelWatches() {
	if sub := t.readSub.Swap(nil); sub != nil {
		sub.Cancel()
	}
	if sub := t.writeSub.Swap(nil); sub != nil {
		sub.Cancel()
	}
}
