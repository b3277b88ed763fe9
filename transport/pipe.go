package transport

import (
	"net"

	"github.com/gossip-lsp/lspframe/poller"
)

// ListenPipe starts a named pipe listener. Outside Windows it is a Unix
// domain socket.
func ListenPipe(p *poller.Poller, name string) (Conn, error) {
	return ListenSocket(p, name)
}

// DialPipe connects to an existing named pipe / Unix domain socket.
func DialPipe(p *poller.Poller, name string) (Conn, error) {
	conn, err := net.Dial("unix", name)
	if err != nil {
		return nil, err
	}
	return FromNetConn(p, conn)
}
