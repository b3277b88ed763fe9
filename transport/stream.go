package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/gossip-lsp/lspframe/readiness"
)

// NewStream adapts a blocking io.ReadWriteCloser into a Conn. A background
// goroutine reads into an inbox and reports readability; writes are handed to
// a second goroutine one at a time, and the Conn is writable again once the
// in-flight write completes.
//
// Use it for media that cannot be polled with the OS readiness mechanism,
// such as WebSocket messages or regular files.
func NewStream(rwc io.ReadWriteCloser) Conn {
	s := &streamConn{
		rwc:     rwc,
		readers: make(map[uint64]func(readiness.Event)),
		writers: make(map[uint64]func(readiness.Event)),
		writeCh: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s
}

type streamConn struct {
	rwc     io.ReadWriteCloser
	writeCh chan []byte
	done    chan struct{}

	mu       sync.Mutex
	inbox    bytes.Buffer
	readErr  error
	writing  bool
	writeErr error
	closed   bool

	nextID  uint64
	readers map[uint64]func(readiness.Event)
	writers map[uint64]func(readiness.Event)

	closeOnce sync.Once
}

func (s *streamConn) readLoop() {
	buf := make([]byte, DefaultReadSize)
	for {
		n, err := s.rwc.Read(buf)
		s.mu.Lock()
		s.inbox.Write(buf[:n])
		if err != nil {
			s.readErr = err
		}
		fire := s.readyLocked()
		s.mu.Unlock()
		fire()
		if err != nil {
			return
		}
	}
}

func (s *streamConn) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case b := <-s.writeCh:
			_, err := s.rwc.Write(b)
			s.mu.Lock()
			s.writing = false
			if err != nil {
				s.writeErr = err
			}
			fire := s.readyLocked()
			s.mu.Unlock()
			fire()
		}
	}
}

func (s *streamConn) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.inbox.Len() > 0 {
		n, _ := s.inbox.Read(p)
		fire := s.readyLocked()
		s.mu.Unlock()
		fire()
		return n, nil
	}
	err, closed := s.readErr, s.closed
	s.mu.Unlock()
	switch {
	case closed, errors.Is(err, io.EOF):
		return 0, io.EOF
	case err != nil:
		return 0, err
	default:
		return 0, readiness.ErrWouldBlock
	}
}

func (s *streamConn) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.writeErr != nil:
		return 0, s.writeErr
	case s.closed:
		return 0, io.ErrClosedPipe
	case s.writing:
		return 0, readiness.ErrWouldBlock
	}
	s.writing = true
	b := make([]byte, len(p))
	copy(b, p)
	s.writeCh <- b
	return len(p), nil
}

func (s *streamConn) Register(interest readiness.Interest, fn func(readiness.Event)) (readiness.Token, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	set := s.writers
	if interest == readiness.InterestRead {
		set = s.readers
	}
	set[id] = fn
	fire := s.readyLocked()
	s.mu.Unlock()
	fire()

	return readiness.TokenFunc(func() error {
		s.mu.Lock()
		delete(set, id)
		s.mu.Unlock()
		return nil
	}), nil
}

func (s *streamConn) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		err = s.rwc.Close()
	})
	return err
}

func (s *streamConn) readyLocked() func() {
	var calls []func()
	switch {
	case s.inbox.Len() > 0:
		for _, fn := range s.readers {
			calls = append(calls, func() { fn(readiness.Readable) })
		}
	case s.closed || errors.Is(s.readErr, io.EOF):
		for _, fn := range s.readers {
			calls = append(calls, func() { fn(readiness.Closed) })
		}
	case s.readErr != nil:
		// Readable so that Read surfaces the error.
		for _, fn := range s.readers {
			calls = append(calls, func() { fn(readiness.Readable) })
		}
	}
	if !s.writing {
		for _, fn := range s.writers {
			calls = append(calls, func() { fn(readiness.Writable) })
		}
	}
	return func() {
		for _, c := range calls {
			c()
		}
	}
}
