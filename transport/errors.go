package transport

import (
	"errors"
	"fmt"

	"github.com/gossip-lsp/lspframe/frame"
)

// ErrClosed is returned when the transport's processing context no longer
// accepts work.
var ErrClosed = errors.New("transport: closed")

// Kind classifies a terminal transport failure.
type Kind int

const (
	// KindIO is a read, write or watch failure on the handle.
	KindIO Kind = iota + 1
	// KindMalformedHeader is an unparsable or missing Content-Length.
	KindMalformedHeader
	// KindTruncatedStream is end of stream in the middle of a frame.
	KindTruncatedStream
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindMalformedHeader:
		return "malformed-header"
	case KindTruncatedStream:
		return "truncated-stream"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the terminal failure reported through Callbacks.OnError.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of a transport error, or 0 if err is not one.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

func decodeError(op string, err error) *Error {
	kind := KindIO
	switch {
	case errors.Is(err, frame.ErrMalformedHeader):
		kind = KindMalformedHeader
	case errors.Is(err, frame.ErrTruncatedStream):
		kind = KindTruncatedStream
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
