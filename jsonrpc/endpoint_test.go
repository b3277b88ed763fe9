package jsonrpc_test

import (
	"errors"
	"testing"

	"github.com/gossip-lsp/lspframe/jsonrpc"
	"github.com/gossip-lsp/lspframe/wiretest"
)

type captureSender struct {
	payloads []string
}

func (c *captureSender) Send(p []byte) { c.payloads = append(c.payloads, string(p)) }

func TestEndpointMessages(t *testing.T) {
	s := &captureSender{}
	e := jsonrpc.NewEndpoint(s)

	if err := e.Notify("window/logMessage", map[string]any{"type": 3, "message": "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Request(jsonrpc.IntID(7), "workspace/configuration", nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Reply(jsonrpc.StringID("r1"), []int{1, 2}, nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Reply(jsonrpc.IntID(8), nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "unknown"}); err != nil {
		t.Fatal(err)
	}

	want := []string{
		`{"jsonrpc":"2.0","method":"window/logMessage","params":{"message":"hi","type":3}}`,
		`{"jsonrpc":"2.0","id":7,"method":"workspace/configuration"}`,
		`{"jsonrpc":"2.0","id":"r1","result":[1,2]}`,
		`{"jsonrpc":"2.0","id":8,"error":{"code":-32601,"message":"unknown"}}`,
	}
	if len(s.payloads) != len(want) {
		t.Fatalf("sent %d payloads, want %d", len(s.payloads), len(want))
	}
	for i := range want {
		if s.payloads[i] != want[i] {
			t.Errorf("payload %d = %s\nwant %s", i, s.payloads[i], want[i])
		}
	}
}

func TestEndpointBadParams(t *testing.T) {
	s := &captureSender{}
	e := jsonrpc.NewEndpoint(s)
	if err := e.Notify("x", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if len(s.payloads) != 0 {
		t.Error("payload sent despite marshal error")
	}
}

func TestEndpointOverTransport(t *testing.T) {
	h := wiretest.NewHarness(t)
	e := jsonrpc.NewEndpoint(h.Transport)
	if err := e.Notify("initialized", struct{}{}); err != nil {
		t.Fatal(err)
	}
	h.Pump()
	h.Flush()

	want := wiretest.Frame(`{"jsonrpc":"2.0","method":"initialized","params":{}}`)
	if got := string(h.Handle.Written()); got != want {
		t.Errorf("written %q, want %q", got, want)
	}
}

func TestDecoderCallback(t *testing.T) {
	var kinds []jsonrpc.Kind
	var errs []error
	fn := jsonrpc.Decoder(func(m jsonrpc.Message, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		kinds = append(kinds, m.Kind())
	})

	fn([]byte(`{"jsonrpc":"2.0","id":1,"method":"a"}`))
	fn([]byte(`{"jsonrpc":"2.0","id":1,"result":0}`))
	fn([]byte(`garbage`))

	if len(kinds) != 2 || kinds[0] != jsonrpc.KindRequest || kinds[1] != jsonrpc.KindResponse {
		t.Errorf("kinds = %v", kinds)
	}
	var rpcErr *jsonrpc.Error
	if len(errs) != 1 || !errors.As(errs[0], &rpcErr) || rpcErr.Code != jsonrpc.CodeParseError {
		t.Errorf("errs = %v", errs)
	}
}
