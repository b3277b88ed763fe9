//go:build !linux

package transport

import (
	"net"

	"github.com/gossip-lsp/lspframe/poller"
)

// FromNetConn wraps conn with NewStream; descriptor polling is Linux-only.
func FromNetConn(_ *poller.Poller, conn net.Conn) (Conn, error) {
	return NewStream(conn), nil
}
