package wiretest

import (
	"strings"

	"github.com/gossip-lsp/lspframe/frame"
)

// Frame returns the wire form of payload.
func Frame(payload string) string {
	return string(frame.Encode([]byte(payload)))
}

// Frames concatenates the wire forms of payloads.
func Frames(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString(Frame(p))
	}
	return b.String()
}

// Split cuts s into chunks of at most n bytes.
func Split(s string, n int) []string {
	if n <= 0 {
		return []string{s}
	}
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}
