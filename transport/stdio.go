package transport

import (
	"errors"
	"io"
	"os"

	"github.com/gossip-lsp/lspframe/poller"
)

type stdioStream struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (s *stdioStream) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *stdioStream) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s *stdioStream) Close() error {
	s.in.Close()
	return s.out.Close()
}

// Stdio returns a Conn over os.Stdin and os.Stdout. With a Poller both
// descriptors are polled directly; when that is impossible (nil Poller,
// redirected regular files, unsupported platform) blocking I/O is adapted
// with NewStream.
func Stdio(p *poller.Poller) (Conn, error) {
	return openPair(p, os.Stdin, os.Stdout)
}

func openPair(p *poller.Poller, in *os.File, out *os.File) (Conn, error) {
	if p != nil {
		h, err := p.Open(int(in.Fd()), int(out.Fd()))
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, poller.ErrNotPollable) && !errors.Is(err, poller.ErrUnsupported) {
			return nil, err
		}
	}
	return NewStream(&stdioStream{in: in, out: out}), nil
}
