package frame

import (
	"errors"
	"fmt"
	"io"
)

// Reader reads framed payloads from a blocking stream.
type Reader struct {
	r       io.Reader
	dec     *Decoder
	buf     []byte
	pending [][]byte
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:   r,
		dec: NewDecoder(),
		buf: make([]byte, 64*1024),
	}
}

// Read returns the next payload. It returns io.EOF when the stream ends on a
// frame boundary and an error wrapping ErrTruncatedStream otherwise.
func (r *Reader) Read() ([]byte, error) {
	for len(r.pending) == 0 {
		n, err := r.r.Read(r.buf)
		if n > 0 {
			payloads, derr := r.dec.Feed(r.buf[:n])
			r.pending = append(r.pending, payloads...)
			if derr != nil && len(r.pending) == 0 {
				return nil, derr
			}
		}
		if err != nil && len(r.pending) == 0 {
			if errors.Is(err, io.EOF) {
				if cerr := r.dec.Close(); cerr != nil {
					return nil, cerr
				}
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading frame: %w", err)
		}
	}
	p := r.pending[0]
	r.pending = r.pending[1:]
	return p, nil
}
