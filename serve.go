package lspframe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gossip-lsp/lspframe/eventloop"
	"github.com/gossip-lsp/lspframe/jsonrpc"
	"github.com/gossip-lsp/lspframe/poller"
	"github.com/gossip-lsp/lspframe/telemetry"
	"github.com/gossip-lsp/lspframe/transport"
)

// Handler receives the payloads of a served connection. It runs on the
// connection's processing context and must not block.
type Handler interface {
	HandleMessage(s *Session, payload []byte)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(s *Session, payload []byte)

func (f HandlerFunc) HandleMessage(s *Session, payload []byte) { f(s, payload) }

// Session is the served connection as seen by a Handler.
type Session struct {
	t      *transport.Transport
	rpc    *jsonrpc.Endpoint
	logger *slog.Logger
	stop   func()
}

// Send frames payload and queues it for writing.
func (s *Session) Send(payload []byte) { s.t.Send(payload) }

// RPC returns a JSON-RPC endpoint writing to the session.
func (s *Session) RPC() *jsonrpc.Endpoint { return s.rpc }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Close ends the session once queued output is written; Serve then
// returns nil.
func (s *Session) Close() { s.stop() }

// Serve opens the configured medium (stdio by default) and runs one
// connection until the peer ends the stream, the transport fails, the
// handler closes the session, or ctx is done. A clean end returns nil after
// queued output is written; a transport failure returns its *transport.Error.
func Serve(ctx context.Context, h Handler, opts ...ServeOption) error {
	cfg := &serveConfig{logger: slog.Default()}
	WithStdio()(cfg)
	for _, o := range opts {
		o(cfg)
	}
	if cfg.err != nil {
		return cfg.err
	}

	p, err := poller.New(poller.WithLogger(cfg.logger))
	if err != nil {
		if !errors.Is(err, poller.ErrUnsupported) {
			return fmt.Errorf("creating poller: %w", err)
		}
		cfg.logger.Debug("readiness polling unavailable, using blocking adapters", "error", err)
		p = nil
	}

	conn, err := cfg.open(p)
	if err != nil {
		if p != nil {
			p.Close()
		}
		return fmt.Errorf("opening %s: %w", cfg.medium, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pollDone chan struct{}
	if p != nil {
		pollDone = make(chan struct{})
		go func() {
			defer close(pollDone)
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				cfg.logger.Error("poller stopped", "error", err)
			}
		}()
	}

	loop := eventloop.New(eventloop.WithLogger(cfg.logger))
	c := &serveConn{loop: loop}
	obs := telemetry.Multi(append(cfg.observers, c)...)

	topts := append([]transport.Option{
		transport.WithLogger(cfg.logger),
		transport.WithObserver(obs),
	}, cfg.topts...)
	sess := &Session{logger: cfg.logger.With("medium", cfg.medium), stop: c.finish}
	c.t = transport.New(conn, loop, transport.Callbacks{
		OnMessage: func(payload []byte) { h.HandleMessage(sess, payload) },
		OnError:   c.fail,
		OnClosed:  c.peerClosed,
	}, topts...)
	sess.t = c.t
	sess.rpc = jsonrpc.NewEndpoint(c.t, jsonrpc.WithLogger(sess.logger))

	cfg.logger.Info("lspframe serving", "medium", cfg.medium)
	err = c.t.Start()
	if err == nil {
		err = loop.Run(ctx)
	}

	c.t.Close()
	loop.Close()
	conn.Close()
	if p != nil {
		cancel()
		<-pollDone
		p.Close()
	}

	if terr := c.err(); terr != nil {
		return terr
	}
	return err
}

// serveConn tracks the end of a served connection. Its observer methods run
// on the loop and stop it once the peer has closed and output is flushed.
type serveConn struct {
	loop *eventloop.Loop
	t    *transport.Transport

	draining bool

	mu      sync.Mutex
	failure error
}

func (c *serveConn) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

func (c *serveConn) fail(err *transport.Error) {
	c.mu.Lock()
	c.failure = err
	c.mu.Unlock()
	c.loop.Close()
}

// peerClosed and finish post the drain check so that payloads sent by
// handlers before them are enqueued first.
func (c *serveConn) peerClosed() { c.finish() }

func (c *serveConn) finish() {
	c.loop.Post(func() {
		c.draining = true
		c.flushed()
	})
}

func (c *serveConn) flushed() {
	if c.draining && c.t.Pending() == 0 {
		c.loop.Close()
	}
}

func (c *serveConn) BytesWritten(int) { c.flushed() }

func (c *serveConn) BytesRead(int)           {}
func (c *serveConn) MessageReceived(int)     {}
func (c *serveConn) MessageQueued(int, int)  {}
func (c *serveConn) StreamEnded()            {}
func (c *serveConn) Failed(*transport.Error) {}
