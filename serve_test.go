package lspframe_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gossip-lsp/lspframe"
	"github.com/gossip-lsp/lspframe/frame"
	"github.com/gossip-lsp/lspframe/jsonrpc"
	"github.com/gossip-lsp/lspframe/readiness"
	"github.com/gossip-lsp/lspframe/telemetry"
	"github.com/gossip-lsp/lspframe/transport"
	"github.com/gossip-lsp/lspframe/wiretest"
)

var echo = lspframe.HandlerFunc(func(s *lspframe.Session, p []byte) { s.Send(p) })

func serve(t *testing.T, h lspframe.Handler, conn transport.Conn, opts ...lspframe.ServeOption) <-chan error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	errc := make(chan error, 1)
	go func() {
		errc <- lspframe.Serve(ctx, h, append([]lspframe.ServeOption{lspframe.WithConn(conn)}, opts...)...)
	}()
	return errc
}

func wait(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

// readAll reads frames from a memory conn until end of stream.
func readAll(t *testing.T, c *transport.MemoryConn) []string {
	t.Helper()
	dec := frame.NewDecoder()
	var out []string
	buf := make([]byte, 256)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := c.Read(buf)
		payloads, derr := dec.Feed(buf[:n])
		if derr != nil {
			t.Fatalf("decode: %v", derr)
		}
		for _, p := range payloads {
			out = append(out, string(p))
		}
		switch {
		case err == io.EOF:
			return out
		case err != nil:
			time.Sleep(time.Millisecond)
		}
	}
	t.Fatal("timed out reading frames")
	return nil
}

// writeAll writes b to c, waiting out short writes and a full pipe.
func writeAll(t *testing.T, c *transport.MemoryConn, b []byte) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(b) > 0 {
		n, err := c.Write(b)
		b = b[n:]
		switch {
		case err == nil:
		case errors.Is(err, readiness.ErrWouldBlock) && time.Now().Before(deadline):
			time.Sleep(time.Millisecond)
		default:
			t.Fatalf("write: %v (%d bytes left)", err, len(b))
		}
	}
}

func TestServeEchoFlushesBeforeReturning(t *testing.T) {
	client, server := transport.MemoryPipe(transport.WithWriteLimit(7))
	metrics := telemetry.NewMetrics()
	errc := serve(t, echo, server, lspframe.WithObserver(metrics))

	writeAll(t, client, []byte(wiretest.Frames("one", "two", "three")))
	client.CloseWrite()

	if err := wait(t, errc); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	got := readAll(t, client)
	wiretest.AssertMessages(t, bytesOf(got), "one", "two", "three")

	if snap := metrics.Snapshot(); snap.MessagesReceived != 3 || snap.StreamsEnded != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func bytesOf(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestServeReturnsTransportError(t *testing.T) {
	client, server := transport.MemoryPipe()
	errc := serve(t, echo, server)

	client.Write([]byte("Content-Length: x\r\n\r\n"))

	err := wait(t, errc)
	if transport.KindOf(err) != transport.KindMalformedHeader {
		t.Fatalf("Serve = %v, want malformed header", err)
	}
}

func TestServeSessionClose(t *testing.T) {
	client, server := transport.MemoryPipe()
	h := lspframe.HandlerFunc(func(s *lspframe.Session, p []byte) {
		msg, err := jsonrpc.DecodeMessage(p)
		if err != nil {
			return
		}
		if req, ok := msg.(*jsonrpc.Request); ok && req.Method == "shutdown" {
			s.RPC().Reply(req.ID, nil, nil)
			s.Close()
		}
	})
	errc := serve(t, h, server)

	client.Write([]byte(wiretest.Frame(`{"jsonrpc":"2.0","id":1,"method":"shutdown"}`)))

	if err := wait(t, errc); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	wiretest.AssertMessages(t, bytesOf(readAll(t, client)), `{"jsonrpc":"2.0","id":1,"result":null}`)
}

func TestServeContextCancel(t *testing.T) {
	_, server := transport.MemoryPipe()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- lspframe.Serve(ctx, echo, lspframe.WithConn(server)) }()

	cancel()
	if err := wait(t, errc); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve = %v, want context.Canceled", err)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args []string
		ok   bool
	}{
		{nil, true},
		{[]string{"--stdio"}, true},
		{[]string{"--tcp", ":9257"}, true},
		{[]string{"--tcp=:9257"}, true},
		{[]string{"--verbose", "--socket", "/tmp/x.sock"}, true},
		{[]string{"--pipe="}, false},
		{[]string{"--ws", "--stdio"}, false},
		{[]string{"--node-ipc"}, true},
	}
	for _, tt := range tests {
		_, err := lspframe.ParseArgs(tt.args)
		if (err == nil) != tt.ok {
			t.Errorf("ParseArgs(%q) error = %v", tt.args, err)
		}
	}
}
