// Package frame implements the LSP base protocol framing:
//
//	Content-Length: <decimal>\r\n
//	\r\n
//	<body>
//
// The Decoder is incremental: it accepts arbitrary chunks as they arrive from
// a non-blocking handle and yields complete payloads. Encode produces the wire
// form of a payload. Reader and Write offer the same framing over blocking
// io.Reader/io.Writer streams.
package frame

import (
	"errors"
	"io"
	"strconv"
)

const headerKey = "Content-Length"

var (
	// ErrMalformedHeader reports a header block whose Content-Length is
	// missing, non-numeric, negative or out of range. Byte alignment with the
	// peer is lost after it.
	ErrMalformedHeader = errors.New("frame: malformed header")

	// ErrTruncatedStream reports end of stream in the middle of a frame.
	ErrTruncatedStream = errors.New("frame: truncated stream")
)

var (
	headerPrefix = []byte(headerKey + ": ")
	headerEnd    = []byte("\r\n\r\n")
)

// Encode returns the wire form of payload.
func Encode(payload []byte) []byte {
	return AppendEncode(make([]byte, 0, len(headerPrefix)+20+len(headerEnd)+len(payload)), payload)
}

// AppendEncode appends the wire form of payload to dst.
func AppendEncode(dst, payload []byte) []byte {
	dst = append(dst, headerPrefix...)
	dst = strconv.AppendInt(dst, int64(len(payload)), 10)
	dst = append(dst, headerEnd...)
	return append(dst, payload...)
}

// Write writes one framed payload to w in a single call.
func Write(w io.Writer, payload []byte) error {
	_, err := w.Write(Encode(payload))
	return err
}
