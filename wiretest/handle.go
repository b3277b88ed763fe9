package wiretest

import (
	"bytes"
	"sync"

	"github.com/gossip-lsp/lspframe/readiness"
)

// Handle is a scripted readiness.Handle. Reads are served from chunks queued
// with Push; readiness is only reported when the test calls Fire. Writes are
// captured and can be limited or blocked.
type Handle struct {
	mu         sync.Mutex
	chunks     [][]byte
	readErr    error
	readCalls  int
	writeLimit int
	blocked    bool
	writeErr   error
	written    bytes.Buffer

	nextID        uint64
	watchers      map[readiness.Interest]map[uint64]func(readiness.Event)
	registrations map[readiness.Interest]int
	closed        bool
}

// NewHandle creates an empty Handle.
func NewHandle() *Handle {
	return &Handle{
		watchers: map[readiness.Interest]map[uint64]func(readiness.Event){
			readiness.InterestRead:  {},
			readiness.InterestWrite: {},
		},
		registrations: make(map[readiness.Interest]int),
	}
}

// Push queues chunks. Each Read returns at most one chunk.
func (h *Handle) Push(chunks ...[]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range chunks {
		h.chunks = append(h.chunks, bytes.Clone(c))
	}
}

// PushString queues s as one chunk.
func (h *Handle) PushString(s string) { h.Push([]byte(s)) }

// EndWith makes Read return err once the queued chunks are consumed.
// Use io.EOF for a clean end of stream.
func (h *Handle) EndWith(err error) {
	h.mu.Lock()
	h.readErr = err
	h.mu.Unlock()
}

func (h *Handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readCalls++
	if len(h.chunks) == 0 {
		if h.readErr != nil {
			return 0, h.readErr
		}
		return 0, readiness.ErrWouldBlock
	}
	n := copy(p, h.chunks[0])
	if n == len(h.chunks[0]) {
		h.chunks = h.chunks[1:]
	} else {
		h.chunks[0] = h.chunks[0][n:]
	}
	return n, nil
}

// ReadCalls reports how many times Read was called.
func (h *Handle) ReadCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readCalls
}

// SetWriteLimit caps the bytes accepted per Write. Zero means unlimited.
func (h *Handle) SetWriteLimit(n int) {
	h.mu.Lock()
	h.writeLimit = n
	h.mu.Unlock()
}

// BlockWrites makes Write return readiness.ErrWouldBlock while on is true.
func (h *Handle) BlockWrites(on bool) {
	h.mu.Lock()
	h.blocked = on
	h.mu.Unlock()
}

// FailWrites makes every subsequent Write return err.
func (h *Handle) FailWrites(err error) {
	h.mu.Lock()
	h.writeErr = err
	h.mu.Unlock()
}

func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.writeErr != nil:
		return 0, h.writeErr
	case h.blocked:
		return 0, readiness.ErrWouldBlock
	}
	n := len(p)
	if h.writeLimit > 0 && n > h.writeLimit {
		n = h.writeLimit
	}
	h.written.Write(p[:n])
	return n, nil
}

// Written returns a copy of everything written so far.
func (h *Handle) Written() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bytes.Clone(h.written.Bytes())
}

// Register implements readiness.Notifier.
func (h *Handle) Register(interest readiness.Interest, fn func(readiness.Event)) (readiness.Token, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.watchers[interest][id] = fn
	h.registrations[interest]++
	return readiness.TokenFunc(func() error {
		h.mu.Lock()
		delete(h.watchers[interest], id)
		h.mu.Unlock()
		return nil
	}), nil
}

// Fire notifies every watcher of interest with ev.
func (h *Handle) Fire(interest readiness.Interest, ev readiness.Event) {
	h.mu.Lock()
	fns := make([]func(readiness.Event), 0, len(h.watchers[interest]))
	for _, fn := range h.watchers[interest] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Active reports whether a watch for interest is registered.
func (h *Handle) Active(interest readiness.Interest) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[interest]) > 0
}

// Registrations reports how many watches for interest were ever registered.
func (h *Handle) Registrations(interest readiness.Interest) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registrations[interest]
}

// Close marks the handle closed.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

// IsClosed reports whether Close was called.
func (h *Handle) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
