package transport

import (
	"bytes"
	"io"
	"sync"

	"github.com/gossip-lsp/lspframe/readiness"
)

// MemoryOption configures a MemoryPipe.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	writeLimit int
	capacity   int
}

// WithWriteLimit caps the bytes accepted by a single Write, forcing partial
// writes.
func WithWriteLimit(n int) MemoryOption {
	return func(c *memoryConfig) { c.writeLimit = n }
}

// WithCapacity caps the bytes buffered in each direction. Writes beyond it
// return readiness.ErrWouldBlock until the peer reads.
func WithCapacity(n int) MemoryOption {
	return func(c *memoryConfig) { c.capacity = n }
}

// MemoryPipe creates a pair of connected in-memory handles for testing.
// Data written to one side can be read from the other. Readiness is
// level-triggered: watches fire on registration and after every state change
// for as long as the condition holds.
func MemoryPipe(opts ...MemoryOption) (client, server *MemoryConn) {
	var cfg memoryConfig
	for _, o := range opts {
		o(&cfg)
	}
	c2s := newPipe(cfg.capacity)
	s2c := newPipe(cfg.capacity)
	client = &MemoryConn{r: s2c, w: c2s, writeLimit: cfg.writeLimit}
	server = &MemoryConn{r: c2s, w: s2c, writeLimit: cfg.writeLimit}
	return client, server
}

// MemoryConn is one end of a MemoryPipe.
type MemoryConn struct {
	r          *pipe
	w          *pipe
	writeLimit int
}

func (m *MemoryConn) Read(p []byte) (int, error) { return m.r.read(p) }

func (m *MemoryConn) Write(p []byte) (int, error) {
	if m.writeLimit > 0 && len(p) > m.writeLimit {
		p = p[:m.writeLimit]
	}
	return m.w.write(p)
}

func (m *MemoryConn) Register(interest readiness.Interest, fn func(readiness.Event)) (readiness.Token, error) {
	if interest == readiness.InterestRead {
		return m.r.watch(&m.r.readers, fn), nil
	}
	return m.w.watch(&m.w.writers, fn), nil
}

// Close closes both directions. The peer reads buffered data and then sees
// end of stream.
func (m *MemoryConn) Close() error {
	m.r.close()
	m.w.close()
	return nil
}

// CloseWrite closes the outgoing direction only. The peer sees end of stream
// after the buffered data and can still write back.
func (m *MemoryConn) CloseWrite() error {
	m.w.close()
	return nil
}

// pipe is a non-blocking in-memory byte pipe with readiness watchers.
type pipe struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	closed   bool
	capacity int

	nextID  uint64
	readers map[uint64]func(readiness.Event)
	writers map[uint64]func(readiness.Event)
}

func newPipe(capacity int) *pipe {
	return &pipe{
		capacity: capacity,
		readers:  make(map[uint64]func(readiness.Event)),
		writers:  make(map[uint64]func(readiness.Event)),
	}
}

func (p *pipe) write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if p.capacity > 0 {
		if space := p.capacity - p.buf.Len(); len(data) > space {
			data = data[:space]
		}
	}
	if len(data) == 0 {
		p.mu.Unlock()
		return 0, readiness.ErrWouldBlock
	}
	n, _ := p.buf.Write(data)
	fire := p.readyLocked()
	p.mu.Unlock()
	fire()
	return n, nil
}

func (p *pipe) read(data []byte) (int, error) {
	p.mu.Lock()
	if p.buf.Len() == 0 {
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return 0, io.EOF
		}
		return 0, readiness.ErrWouldBlock
	}
	n, _ := p.buf.Read(data)
	fire := p.readyLocked()
	p.mu.Unlock()
	fire()
	return n, nil
}

func (p *pipe) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	fire := p.readyLocked()
	p.mu.Unlock()
	fire()
}

func (p *pipe) watch(set *map[uint64]func(readiness.Event), fn func(readiness.Event)) readiness.Token {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	(*set)[id] = fn
	fire := p.readyLocked()
	p.mu.Unlock()
	fire()

	return readiness.TokenFunc(func() error {
		p.mu.Lock()
		delete(*set, id)
		p.mu.Unlock()
		return nil
	})
}

// readyLocked snapshots the watchers whose condition currently holds and
// returns a function notifying them outside the lock.
func (p *pipe) readyLocked() func() {
	var calls []func()
	switch {
	case p.buf.Len() > 0:
		for _, fn := range p.readers {
			calls = append(calls, func() { fn(readiness.Readable) })
		}
	case p.closed:
		for _, fn := range p.readers {
			calls = append(calls, func() { fn(readiness.Closed) })
		}
	}
	if p.closed || p.capacity == 0 || p.buf.Len() < p.capacity {
		for _, fn := range p.writers {
			calls = append(calls, func() { fn(readiness.Writable) })
		}
	}
	return func() {
		for _, c := range calls {
			c()
		}
	}
}
