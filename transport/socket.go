package transport

import (
	"fmt"
	"net"
	"os"

	"github.com/gossip-lsp/lspframe/poller"
)

// ListenSocket starts a Unix domain socket listener at path and returns the
// first connection. Used by Neovim's vim.lsp.rpc.connect() and other editors
// supporting local IPC. The socket file is removed when the Conn is closed.
func ListenSocket(p *poller.Poller, path string) (Conn, error) {
	os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting on %s: %w", path, err)
	}
	c, err := FromNetConn(p, conn)
	if err != nil {
		return nil, err
	}
	return &socketConn{Conn: c, path: path}, nil
}

type socketConn struct {
	Conn
	path string
}

func (s *socketConn) Close() error {
	err := s.Conn.Close()
	os.Remove(s.path)
	return err
}
