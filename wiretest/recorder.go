package wiretest

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/gossip-lsp/lspframe/transport"
)

// Recorder captures transport callbacks. It is safe for concurrent use, so
// it also serves tests that run the event loop on its own goroutine.
type Recorder struct {
	mu       sync.Mutex
	messages [][]byte
	errs     []*transport.Error
	closed   int
	changed  chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{changed: make(chan struct{}, 1)}
}

// Callbacks returns transport callbacks that record into r.
func (r *Recorder) Callbacks() transport.Callbacks {
	return transport.Callbacks{
		OnMessage: func(p []byte) {
			r.record(func() { r.messages = append(r.messages, bytes.Clone(p)) })
		},
		OnError: func(err *transport.Error) {
			r.record(func() { r.errs = append(r.errs, err) })
		},
		OnClosed: func() {
			r.record(func() { r.closed++ })
		},
	}
}

func (r *Recorder) record(fn func()) {
	r.mu.Lock()
	fn()
	r.mu.Unlock()
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Messages returns the payloads received so far.
func (r *Recorder) Messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.messages...)
}

// Errors returns the errors reported so far.
func (r *Recorder) Errors() []*transport.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*transport.Error(nil), r.errs...)
}

// ClosedCount reports how many times OnClosed ran.
func (r *Recorder) ClosedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// WaitMessages waits until at least n payloads arrived and returns them.
func (r *Recorder) WaitMessages(t testing.TB, n int, timeout time.Duration) [][]byte {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if msgs := r.Messages(); len(msgs) >= n {
			return msgs
		}
		select {
		case <-r.changed:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, got %d", n, len(r.Messages()))
		}
	}
}

// WaitDone waits until an error or a clean close was recorded.
func (r *Recorder) WaitDone(t testing.TB, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if len(r.Errors()) > 0 || r.ClosedCount() > 0 {
			return
		}
		select {
		case <-r.changed:
		case <-deadline:
			t.Fatal("timed out waiting for the transport to finish")
		}
	}
}
