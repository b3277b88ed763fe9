// Package eventloop provides the single processing context on which all
// transport state is mutated. Tasks posted from any goroutine run one at a
// time, in the order they were posted.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/eapache/queue"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("eventloop: closed")

// Loop is a serial task queue. Run drives it on the calling goroutine;
// RunPending drains it synchronously, which tests use for deterministic
// stepping.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   *queue.Queue
	closed  bool
	running bool
	wake    chan struct{}
	done    chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report recovered panics.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// New creates an idle Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.Default(),
		tasks:  queue.New(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Post queues fn. It never blocks and reports false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks.Add(fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending reports the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Length()
}

// RunPending runs queued tasks, including ones they post, until the queue is
// empty. It returns the number of tasks run. It must not be called
// concurrently with Run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		fn := l.next()
		if fn == nil {
			return n
		}
		l.run(fn)
		n++
	}
}

// Run processes tasks until ctx is done or Close is called. Tasks still
// queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.running {
		l.mu.Unlock()
		return errors.New("eventloop: already running")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
	}
}

// Close stops the loop. Queued tasks are dropped and later posts are refused.
// Close is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for l.tasks.Length() > 0 {
		l.tasks.Remove()
	}
	close(l.done)
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.tasks.Length() == 0 {
		return nil
	}
	return l.tasks.Remove().(func())
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic recovered in loop task",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
