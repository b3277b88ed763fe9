//go:build linux

package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gossip-lsp/lspframe/readiness"
)

const (
	readMask  = unix.EPOLLIN | unix.EPOLLRDHUP
	writeMask = unix.EPOLLOUT
)

// Poller multiplexes readiness for many descriptors over one epoll instance.
// Run drives it; callbacks are invoked on the Run goroutine.
type Poller struct {
	cfg    config
	epfd   int
	wakefd int

	mu      sync.Mutex
	fds     map[int]*registration
	nextID  uint64
	closed  bool
	running bool
}

type registration struct {
	mask    uint32
	readFn  func(readiness.Event)
	readID  uint64
	writeFn func(readiness.Event)
	writeID uint64
}

// New creates a Poller.
func New(opts ...Option) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &Poller{
		cfg:    newConfig(opts),
		epfd:   epfd,
		wakefd: wakefd,
		fds:    make(map[int]*registration),
	}, nil
}

// Run waits for readiness and invokes registered callbacks until ctx is done
// or Close is called.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.running {
		p.mu.Unlock()
		return errors.New("poller: already running")
	}
	p.running = true
	p.mu.Unlock()
	defer p.release()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.wakeup()
		case <-stop:
		}
	}()

	events := make([]unix.EpollEvent, p.cfg.maxEvents)
	for {
		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("epoll wait: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == p.wakefd {
				var buf [8]byte
				unix.Read(p.wakefd, buf[:])
				if err := ctx.Err(); err != nil {
					return err
				}
				if p.isClosed() {
					return nil
				}
				continue
			}
			p.dispatch(fd, events[i].Events)
		}
	}
}

// Close stops Run and releases the epoll instance. Descriptors opened
// through the Poller are not closed.
func (p *Poller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	running := p.running
	p.mu.Unlock()

	if running {
		p.wakeup()
		return nil
	}
	return p.closeFDs()
}

// Open prepares rfd for reading and wfd for writing (they may be equal) and
// returns a handle over them. Both are switched to non-blocking mode until
// the handle is closed.
func (p *Poller) Open(rfd, wfd int) (*FD, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	// Probe both before touching flags so a failed Open leaves the
	// descriptors usable for blocking I/O.
	for _, fd := range []int{rfd, wfd} {
		if err := p.probe(fd); err != nil {
			return nil, err
		}
	}
	fds := []int{rfd}
	if wfd != rfd {
		fds = append(fds, wfd)
	}
	h := &FD{p: p, rfd: rfd, wfd: wfd}
	for _, fd := range fds {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
		if err != nil {
			h.restore()
			return nil, fmt.Errorf("get flags fd %d: %w", fd, err)
		}
		if flags&unix.O_NONBLOCK != 0 {
			continue
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			h.restore()
			return nil, fmt.Errorf("set nonblock fd %d: %w", fd, err)
		}
		h.blocking = append(h.blocking, fd)
	}
	return h, nil
}

// OpenFile is Open over f's descriptor for both directions. The returned
// handle owns f and closes it on Close.
func (p *Poller) OpenFile(f *os.File) (*FD, error) {
	fd := int(f.Fd())
	h, err := p.Open(fd, fd)
	if err != nil {
		return nil, err
	}
	h.file = f
	return h, nil
}

func (p *Poller) probe(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fds[fd]; ok {
		return nil
	}
	ev := unix.EpollEvent{Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if err == unix.EPERM {
			return fmt.Errorf("fd %d: %w", fd, ErrNotPollable)
		}
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *Poller) arm(fd int, interest readiness.Interest, fn func(readiness.Event)) (readiness.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	r := p.fds[fd]
	if r == nil {
		r = &registration{}
		p.fds[fd] = r
	}
	p.nextID++
	id := p.nextID
	var prevFn func(readiness.Event)
	var prevID uint64
	if interest == readiness.InterestRead {
		prevFn, prevID = r.readFn, r.readID
		r.readFn, r.readID = fn, id
	} else {
		prevFn, prevID = r.writeFn, r.writeID
		r.writeFn, r.writeID = fn, id
	}
	if err := p.updateLocked(fd, r); err != nil {
		if interest == readiness.InterestRead {
			r.readFn, r.readID = prevFn, prevID
		} else {
			r.writeFn, r.writeID = prevFn, prevID
		}
		if r.mask == 0 {
			delete(p.fds, fd)
		}
		return nil, err
	}
	return readiness.TokenFunc(func() error { return p.disarm(fd, interest, id) }), nil
}

func (p *Poller) disarm(fd int, interest readiness.Interest, id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.fds[fd]
	if r == nil {
		return nil
	}
	switch {
	case interest == readiness.InterestRead && r.readID == id:
		r.readFn = nil
	case interest == readiness.InterestWrite && r.writeID == id:
		r.writeFn = nil
	default:
		return nil
	}
	if p.closed {
		return nil
	}
	return p.updateLocked(fd, r)
}

func (p *Poller) forget(fd int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.fds[fd]
	if r == nil {
		return
	}
	if r.mask != 0 && !p.closed {
		unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	delete(p.fds, fd)
}

func (p *Poller) updateLocked(fd int, r *registration) error {
	var mask uint32
	if r.readFn != nil {
		mask |= readMask
	}
	if r.writeFn != nil {
		mask |= writeMask
	}
	if mask == r.mask {
		if mask == 0 {
			delete(p.fds, fd)
		}
		return nil
	}
	ev := unix.EpollEvent{Events: mask, Fd: int32(fd)}
	var err error
	switch {
	case mask == 0:
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(p.fds, fd)
	case r.mask == 0:
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	default:
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		return fmt.Errorf("epoll ctl fd %d: %w", fd, err)
	}
	r.mask = mask
	return nil
}

func (p *Poller) dispatch(fd int, events uint32) {
	p.mu.Lock()
	r := p.fds[fd]
	if r == nil {
		p.mu.Unlock()
		return
	}
	readFn, writeFn := r.readFn, r.writeFn
	p.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			p.cfg.logger.Error("panic in readiness callback", "fd", fd, "panic", rec)
		}
	}()

	if readFn != nil {
		switch {
		case events&(unix.EPOLLIN|unix.EPOLLERR) != 0:
			readFn(readiness.Readable)
		case events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0:
			readFn(readiness.Closed)
		}
	}
	// Errors and hangups are reported as writable so the next write
	// surfaces them.
	if writeFn != nil && events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		writeFn(readiness.Writable)
	}
}

func (p *Poller) wakeup() {
	var one = [8]byte{1}
	unix.Write(p.wakefd, one[:])
}

func (p *Poller) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Poller) release() {
	p.mu.Lock()
	p.running = false
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.closeFDs()
	}
}

func (p *Poller) closeFDs() error {
	err1 := unix.Close(p.wakefd)
	err2 := unix.Close(p.epfd)
	return errors.Join(err1, err2)
}

// FD is a readiness handle over raw descriptors registered with a Poller.
// Descriptors that were blocking before Open are switched back on Close, so
// a shared open file description (a terminal behind stdout and stderr) is
// left as it was found.
type FD struct {
	p         *Poller
	rfd, wfd  int
	file      *os.File
	blocking  []int
	closeOnce sync.Once
}

func (f *FD) restore() {
	for _, fd := range f.blocking {
		unix.SetNonblock(fd, false)
	}
	f.blocking = nil
}

func (f *FD) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(f.rfd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, readiness.ErrWouldBlock
		case err != nil:
			return 0, os.NewSyscallError("read", err)
		case n == 0 && len(b) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

func (f *FD) Write(b []byte) (int, error) {
	for {
		n, err := unix.Write(f.wfd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, readiness.ErrWouldBlock
		case err != nil:
			return 0, os.NewSyscallError("write", err)
		}
		return n, nil
	}
}

// Register implements readiness.Notifier.
func (f *FD) Register(interest readiness.Interest, fn func(readiness.Event)) (readiness.Token, error) {
	fd := f.wfd
	if interest == readiness.InterestRead {
		fd = f.rfd
	}
	return f.p.arm(fd, interest, fn)
}

// Close removes the descriptors from the Poller and closes them.
func (f *FD) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.p.forget(f.rfd)
		f.restore()
		if f.file != nil {
			err = f.file.Close()
			return
		}
		err = unix.Close(f.rfd)
		if f.wfd != f.rfd {
			f.p.forget(f.wfd)
			err = errors.Join(err, unix.Close(f.wfd))
		}
	})
	return err
}
