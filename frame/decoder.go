package frame

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// State is the position of a Decoder in the frame grammar.
type State int

const (
	AwaitingHeader State = iota
	AwaitingBody
)

func (s State) String() string {
	switch s {
	case AwaitingHeader:
		return "awaiting-header"
	case AwaitingBody:
		return "awaiting-body"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Decoder reassembles framed payloads from a byte stream delivered in
// arbitrary chunks.
//
// The buffer is unbounded: a peer announcing a large Content-Length makes the
// Decoder hold that many bytes. Callers needing a cap enforce it above this
// layer. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	off     int // start of unconsumed bytes in buf
	scanned int // bytes after off already searched for headerEnd
	state   State
	need    int // body bytes expected while AwaitingBody
	err     error
}

// NewDecoder returns a Decoder awaiting its first header.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// State reports the current state.
func (d *Decoder) State() State { return d.state }

// Buffered reports how many received bytes have not been emitted yet.
func (d *Decoder) Buffered() int { return len(d.buf) - d.off }

// Err returns the sticky decode error, if any.
func (d *Decoder) Err() error { return d.err }

// Feed appends chunk and returns every payload completed by it, in order.
// When a header is malformed, payloads completed before it are returned along
// with the error, and every later call returns the same error.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.buf = append(d.buf, chunk...)

	var out [][]byte
	for {
		switch d.state {
		case AwaitingHeader:
			pending := d.buf[d.off:]
			// Resume the terminator search a few bytes back so a split
			// "\r\n\r\n" is still found.
			from := d.scanned - (len(headerEnd) - 1)
			if from < 0 {
				from = 0
			}
			i := bytes.Index(pending[from:], headerEnd)
			if i < 0 {
				d.scanned = len(pending)
				d.compact()
				return out, nil
			}
			i += from
			n, err := parseHeader(pending[:i])
			if err != nil {
				d.err = err
				d.compact()
				return out, err
			}
			d.off += i + len(headerEnd)
			d.scanned = 0
			d.state = AwaitingBody
			d.need = n

		case AwaitingBody:
			if d.Buffered() < d.need {
				d.compact()
				return out, nil
			}
			payload := make([]byte, d.need)
			copy(payload, d.buf[d.off:d.off+d.need])
			d.off += d.need
			d.need = 0
			d.state = AwaitingHeader
			out = append(out, payload)
		}
	}
}

// Close signals end of stream. It returns nil when the stream ended on a
// frame boundary and ErrTruncatedStream when a partial frame is buffered.
func (d *Decoder) Close() error {
	if d.err != nil {
		return d.err
	}
	switch {
	case d.state == AwaitingBody:
		d.err = fmt.Errorf("%w: received %d of %d body bytes", ErrTruncatedStream, d.Buffered(), d.need)
	case d.Buffered() > 0:
		d.err = fmt.Errorf("%w: %d bytes of incomplete header", ErrTruncatedStream, d.Buffered())
	}
	return d.err
}

// Reset discards buffered bytes and any sticky error.
func (d *Decoder) Reset() {
	*d = Decoder{buf: d.buf[:0]}
}

func (d *Decoder) compact() {
	if d.off == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.off:])
	d.buf = d.buf[:n]
	d.off = 0
}

// parseHeader extracts Content-Length from a header block (without the
// terminating blank line). Lines without a colon and unknown keys are ignored.
func parseHeader(block []byte) (int, error) {
	contentLen := -1
	for _, line := range strings.Split(string(block), "\r\n") {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		if !strings.EqualFold(key, headerKey) {
			continue
		}
		val := strings.TrimSpace(line[colon+1:])
		n, err := parseLength(val)
		if err != nil {
			return 0, err
		}
		contentLen = n
	}
	if contentLen < 0 {
		return 0, fmt.Errorf("%w: missing Content-Length", ErrMalformedHeader)
	}
	return contentLen, nil
}

func parseLength(val string) (int, error) {
	if val == "" {
		return 0, fmt.Errorf("%w: empty Content-Length", ErrMalformedHeader)
	}
	if val[0] == '-' {
		return 0, fmt.Errorf("%w: negative Content-Length %q", ErrMalformedHeader, val)
	}
	for i := 0; i < len(val); i++ {
		if val[i] < '0' || val[i] > '9' {
			return 0, fmt.Errorf("%w: invalid Content-Length %q", ErrMalformedHeader, val)
		}
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%w: Content-Length %q: %v", ErrMalformedHeader, val, err)
	}
	return n, nil
}
