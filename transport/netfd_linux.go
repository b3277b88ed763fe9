//go:build linux

package transport

import (
	"fmt"
	"net"
	"os"

	"github.com/gossip-lsp/lspframe/poller"
)

type filer interface {
	File() (*os.File, error)
}

// FromNetConn converts conn into a Conn. With a Poller, the socket is
// taken over through File, which returns a separate descriptor, and conn is
// closed. Without one, conn is wrapped with NewStream.
func FromNetConn(p *poller.Poller, conn net.Conn) (Conn, error) {
	fc, ok := conn.(filer)
	if p == nil || !ok {
		return NewStream(conn), nil
	}
	f, err := fc.File()
	if err != nil {
		return nil, fmt.Errorf("taking over connection: %w", err)
	}
	conn.Close()

	h, err := p.OpenFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}
