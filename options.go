package lspframe

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gossip-lsp/lspframe/config"
	"github.com/gossip-lsp/lspframe/poller"
	"github.com/gossip-lsp/lspframe/transport"
)

// ServeOption configures Serve.
type ServeOption func(*serveConfig)

type connFunc func(p *poller.Poller) (transport.Conn, error)

type serveConfig struct {
	medium    string
	open      connFunc
	logger    *slog.Logger
	observers []transport.Observer
	topts     []transport.Option
	err       error
}

func (cfg *serveConfig) use(medium string, open connFunc) {
	cfg.medium = medium
	cfg.open = open
}

// WithStdio serves over stdin/stdout. This is the default.
func WithStdio() ServeOption {
	return func(cfg *serveConfig) { cfg.use("stdio", transport.Stdio) }
}

// WithTCP listens on a TCP address (e.g., ":9257") and serves the first
// client.
func WithTCP(addr string) ServeOption {
	return func(cfg *serveConfig) {
		cfg.use("tcp", func(p *poller.Poller) (transport.Conn, error) {
			return transport.ListenTCP(p, addr)
		})
	}
}

// WithSocket listens on a Unix domain socket.
func WithSocket(path string) ServeOption {
	return func(cfg *serveConfig) {
		cfg.use("socket", func(p *poller.Poller) (transport.Conn, error) {
			return transport.ListenSocket(p, path)
		})
	}
}

// WithPipe listens on a named pipe (a Unix socket outside Windows).
func WithPipe(name string) ServeOption {
	return func(cfg *serveConfig) {
		cfg.use("pipe", func(p *poller.Poller) (transport.Conn, error) {
			return transport.ListenPipe(p, name)
		})
	}
}

// WithWebSocket listens for a WebSocket client.
func WithWebSocket(addr string) ServeOption {
	return func(cfg *serveConfig) {
		cfg.use("websocket", func(*poller.Poller) (transport.Conn, error) {
			return transport.ListenWebSocket(addr)
		})
	}
}

// WithNodeIPC serves the VS Code extension host over Node.js IPC.
func WithNodeIPC() ServeOption {
	return func(cfg *serveConfig) { cfg.use("node-ipc", transport.NodeIPC) }
}

// WithConn serves an already open handle. Serve closes it on return.
func WithConn(c transport.Conn) ServeOption {
	return func(cfg *serveConfig) {
		cfg.use("conn", func(*poller.Poller) (transport.Conn, error) { return c, nil })
	}
}

// WithLogger sets the logger for Serve and the transport.
func WithLogger(l *slog.Logger) ServeOption {
	return func(cfg *serveConfig) { cfg.logger = l }
}

// WithObserver adds a transport observer. Several observers are combined.
func WithObserver(o transport.Observer) ServeOption {
	return func(cfg *serveConfig) { cfg.observers = append(cfg.observers, o) }
}

// WithReadSize sets the per-Read buffer size.
func WithReadSize(n int) ServeOption {
	return func(cfg *serveConfig) { cfg.topts = append(cfg.topts, transport.WithReadSize(n)) }
}

// WithReadPolicy sets the per-event read policy.
func WithReadPolicy(p transport.ReadPolicy) ServeOption {
	return func(cfg *serveConfig) { cfg.topts = append(cfg.topts, transport.WithReadPolicy(p)) }
}

// WithSettings applies the read size and read policy from s.
func WithSettings(s *config.Settings) ServeOption {
	return func(cfg *serveConfig) {
		cfg.topts = append(cfg.topts,
			transport.WithReadSize(s.ReadSize),
			transport.WithReadPolicy(s.Policy()),
		)
	}
}

// FromArgs selects the medium from os.Args. See ParseArgs.
func FromArgs() ServeOption {
	opt, err := ParseArgs(os.Args[1:])
	if err != nil {
		return func(cfg *serveConfig) { cfg.err = err }
	}
	return opt
}

// ParseArgs selects the medium from command-line arguments. Supported flags:
//
//	--stdio               (default)
//	--tcp :PORT
//	--socket PATH
//	--pipe NAME
//	--ws :PORT
//	--node-ipc
//
// Each flag taking a value also accepts the --flag=value form. The first
// medium flag wins; other arguments are ignored.
func ParseArgs(args []string) (ServeOption, error) {
	valued := map[string]func(string) ServeOption{
		"--tcp":    WithTCP,
		"--socket": WithSocket,
		"--pipe":   WithPipe,
		"--ws":     WithWebSocket,
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--stdio":
			return WithStdio(), nil
		case "--node-ipc":
			return WithNodeIPC(), nil
		}
		name, value, hasValue := strings.Cut(arg, "=")
		mk, ok := valued[name]
		if !ok {
			continue
		}
		if !hasValue {
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				return nil, fmt.Errorf("lspframe: %s requires a value", name)
			}
			value = args[i+1]
		}
		if value == "" {
			return nil, fmt.Errorf("lspframe: %s requires a value", name)
		}
		return mk(value), nil
	}
	return WithStdio(), nil
}
