// Package readiness turns handle readiness notifications into cancellable
// subscriptions delivered on a single processing context.
//
// A Handle reports "readable", "writable" or "closed" through callbacks it
// invokes from whatever goroutine observes the change (an epoll loop, a pipe
// writer, a blocking reader). A Source re-posts every notification onto a
// Dispatcher, so that all consumer state is touched from one goroutine, and
// drops notifications whose Subscription has been cancelled.
package readiness

import (
	"errors"
	"fmt"
	"io"
)

// ErrWouldBlock is returned by non-blocking Handle reads and writes that
// cannot make progress right now. Callers wait for the next readiness event.
var ErrWouldBlock = errors.New("readiness: operation would block")

// Interest selects which readiness condition a watch reports.
type Interest uint8

const (
	InterestRead Interest = iota + 1
	InterestWrite
)

func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	default:
		return fmt.Sprintf("Interest(%d)", uint8(i))
	}
}

// Event is a readiness notification. It carries no payload beyond its kind.
type Event uint8

const (
	// Readable means a Read can make progress.
	Readable Event = iota + 1
	// Writable means a Write can make progress.
	Writable
	// Closed means the read side reached end of stream or hung up.
	// It is only reported on read watches.
	Closed
)

func (e Event) String() string {
	switch e {
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}

// Token deregisters a watch previously installed with Notifier.Register.
type Token interface {
	Deregister() error
}

// TokenFunc adapts a function to a Token.
type TokenFunc func() error

func (f TokenFunc) Deregister() error { return f() }

// Notifier is the OS-facing half of a handle: it invokes fn each time the
// handle becomes ready for interest, until the returned token is deregistered.
// fn may be invoked from any goroutine and must not block.
type Notifier interface {
	Register(interest Interest, fn func(Event)) (Token, error)
}

// Handle is a non-blocking byte stream that can be polled for readiness.
//
// Read returns ErrWouldBlock when no data is available and io.EOF once the
// stream has ended. Write may accept fewer bytes than offered; it returns
// ErrWouldBlock when it accepts none.
type Handle interface {
	io.Reader
	io.Writer
	Notifier
}

// Dispatcher runs functions serially on one processing context.
// Post reports false when the context no longer accepts work.
type Dispatcher interface {
	Post(fn func()) bool
}
