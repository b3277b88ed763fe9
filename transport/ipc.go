package transport

import (
	"os"

	"github.com/gossip-lsp/lspframe/poller"
)

// NodeIPC creates a Conn for Node.js IPC communication, as used by the
// VS Code extension host: the parent writes to the child's fd 3 and reads
// the child's stdout.
func NodeIPC(p *poller.Poller) (Conn, error) {
	return openPair(p, os.NewFile(3, "node-ipc-in"), os.Stdout)
}
