package transport

import (
	"fmt"
	"net"

	"github.com/gossip-lsp/lspframe/poller"
)

// TCP creates a Conn from a TCP connection.
func TCP(p *poller.Poller, conn net.Conn) (Conn, error) {
	return FromNetConn(p, conn)
}

// ListenTCP listens on addr and returns the first accepted connection.
// This is the typical mode for LSP servers accepting a single client.
func ListenTCP(p *poller.Poller, addr string) (Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting on %s: %w", addr, err)
	}
	return FromNetConn(p, conn)
}

// DialTCP connects to addr.
func DialTCP(p *poller.Poller, addr string) (Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return FromNetConn(p, conn)
}
