package transport_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gossip-lsp/lspframe/eventloop"
	"github.com/gossip-lsp/lspframe/readiness"
	"github.com/gossip-lsp/lspframe/transport"
	"github.com/gossip-lsp/lspframe/wiretest"
)

func TestMessagesInOrder(t *testing.T) {
	h := wiretest.NewHarness(t)
	wire := wiretest.Frames(`{"id":1}`, `{"id":2}`, `{"id":3}`)
	h.Deliver(wiretest.Split(wire, 5)...)

	wiretest.AssertMessages(t, h.Recorder.Messages(), `{"id":1}`, `{"id":2}`, `{"id":3}`)
	wiretest.AssertNoErrors(t, h.Recorder)
}

func TestCleanClose(t *testing.T) {
	tests := []struct {
		name string
		end  func(h *wiretest.Harness)
	}{
		{"eof on read", func(h *wiretest.Harness) {
			h.Handle.EndWith(io.EOF)
			h.Handle.Fire(readiness.InterestRead, readiness.Readable)
			h.Pump()
		}},
		{"hangup event", func(h *wiretest.Harness) { h.Hangup() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := wiretest.NewHarness(t)
			h.Deliver(wiretest.Frame("last"))
			tt.end(h)
			// A second hangup must not report again.
			h.Hangup()

			wiretest.AssertMessages(t, h.Recorder.Messages(), "last")
			wiretest.AssertNoErrors(t, h.Recorder)
			if n := h.Recorder.ClosedCount(); n != 1 {
				t.Errorf("OnClosed ran %d times", n)
			}
			if h.Handle.Active(readiness.InterestRead) {
				t.Error("read watch still armed after end of stream")
			}
		})
	}
}

func TestTruncatedStream(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"mid header", "Content-Len"},
		{"mid body", "Content-Length: 10\r\n\r\nabc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := wiretest.NewHarness(t)
			h.Deliver(tt.wire)
			h.Hangup()

			wiretest.AssertFailed(t, h.Recorder, transport.KindTruncatedStream)
			if h.Recorder.ClosedCount() != 0 {
				t.Error("OnClosed ran for a truncated stream")
			}
			if len(h.Recorder.Messages()) != 0 {
				t.Error("partial frame was delivered")
			}
		})
	}
}

func TestMalformedHeader(t *testing.T) {
	h := wiretest.NewHarness(t)
	h.Deliver(wiretest.Frame("ok") + "Content-Length: -4\r\n\r\nbody" + wiretest.Frame("never"))

	wiretest.AssertMessages(t, h.Recorder.Messages(), "ok")
	err := wiretest.AssertFailed(t, h.Recorder, transport.KindMalformedHeader)
	if transport.KindOf(err) != transport.KindMalformedHeader {
		t.Errorf("KindOf = %s", transport.KindOf(err))
	}
	if !h.Transport.Closed() {
		t.Error("transport not closed after malformed header")
	}
	if h.Handle.Active(readiness.InterestRead) {
		t.Error("read watch still armed after failure")
	}

	// Further input is ignored.
	h.Deliver(wiretest.Frame("later"))
	wiretest.AssertMessages(t, h.Recorder.Messages(), "ok")
}

func TestReadError(t *testing.T) {
	boom := errors.New("connection reset")
	h := wiretest.NewHarness(t)
	h.Handle.EndWith(boom)
	h.Handle.Fire(readiness.InterestRead, readiness.Readable)
	h.Pump()

	err := wiretest.AssertFailed(t, h.Recorder, transport.KindIO)
	if !errors.Is(err, boom) {
		t.Errorf("error %v does not wrap %v", err, boom)
	}
}

func TestSendWritesFrames(t *testing.T) {
	h := wiretest.NewHarness(t)
	h.Handle.SetWriteLimit(4)
	h.Transport.Send([]byte("one"))
	h.Transport.Send([]byte("two"))
	h.Pump()
	h.Flush()

	if got, want := string(h.Handle.Written()), wiretest.Frames("one", "two"); got != want {
		t.Fatalf("written %q, want %q", got, want)
	}
}

func TestWriteWatchDisarmedWhenIdle(t *testing.T) {
	h := wiretest.NewHarness(t)
	if h.Handle.Active(readiness.InterestWrite) {
		t.Fatal("write watch armed with nothing queued")
	}

	h.Transport.Send([]byte("a"))
	h.Transport.Send([]byte("b"))
	h.Pump()
	if !h.Handle.Active(readiness.InterestWrite) {
		t.Fatal("write watch not armed after Send")
	}
	if n := h.Handle.Registrations(readiness.InterestWrite); n != 1 {
		t.Errorf("write watch registered %d times for one burst", n)
	}

	h.Flush()
	if h.Handle.Active(readiness.InterestWrite) {
		t.Fatal("write watch still armed after the queue drained")
	}

	h.Transport.Send([]byte("c"))
	h.Pump()
	h.Flush()
	if n := h.Handle.Registrations(readiness.InterestWrite); n != 2 {
		t.Errorf("write watch registered %d times, want 2", n)
	}
	if got, want := string(h.Handle.Written()), wiretest.Frames("a", "b", "c"); got != want {
		t.Errorf("written %q, want %q", got, want)
	}
}

func TestBlockedWriteKeepsWatch(t *testing.T) {
	h := wiretest.NewHarness(t)
	h.Handle.BlockWrites(true)
	h.Transport.Send([]byte("held"))
	h.Pump()

	h.Handle.Fire(readiness.InterestWrite, readiness.Writable)
	h.Pump()
	if !h.Handle.Active(readiness.InterestWrite) {
		t.Fatal("write watch disarmed while data is pending")
	}
	if len(h.Handle.Written()) != 0 {
		t.Fatal("blocked handle accepted bytes")
	}

	h.Handle.BlockWrites(false)
	h.Flush()
	if got := string(h.Handle.Written()); got != wiretest.Frame("held") {
		t.Errorf("written %q", got)
	}
}

func TestWriteError(t *testing.T) {
	h := wiretest.NewHarness(t)
	h.Handle.FailWrites(io.ErrClosedPipe)
	h.Transport.Send([]byte("x"))
	h.Pump()
	h.Handle.Fire(readiness.InterestWrite, readiness.Writable)
	h.Pump()

	err := wiretest.AssertFailed(t, h.Recorder, transport.KindIO)
	if err.Op != "write" || !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("error = %v", err)
	}
}

func TestNoCallbacksAfterClose(t *testing.T) {
	h := wiretest.NewHarness(t)
	h.Handle.PushString(wiretest.Frame("pending"))
	// The readable event is posted but not yet run.
	h.Handle.Fire(readiness.InterestRead, readiness.Readable)
	h.Transport.Close()
	h.Pump()

	if msgs := h.Recorder.Messages(); len(msgs) != 0 {
		t.Fatalf("got %d messages after Close", len(msgs))
	}
	h.Hangup()
	if h.Recorder.ClosedCount() != 0 || len(h.Recorder.Errors()) != 0 {
		t.Fatal("callbacks ran after Close")
	}
	if h.Handle.Active(readiness.InterestRead) || h.Handle.Active(readiness.InterestWrite) {
		t.Error("watches armed after Close")
	}

	h.Transport.Send([]byte("dropped"))
	h.Pump()
	if h.Handle.Active(readiness.InterestWrite) {
		t.Error("Send after Close armed the write watch")
	}
}

func TestCloseInsideCallback(t *testing.T) {
	loop := eventloop.New()
	defer loop.Close()
	handle := wiretest.NewHandle()

	var got []string
	var tr *transport.Transport
	tr = transport.New(handle, loop, transport.Callbacks{
		OnMessage: func(p []byte) {
			got = append(got, string(p))
			tr.Close()
		},
	})
	if err := tr.Start(); err != nil {
		t.Fatal(err)
	}
	loop.RunPending()

	handle.PushString(wiretest.Frames("first", "second"))
	handle.Fire(readiness.InterestRead, readiness.Readable)
	loop.RunPending()

	if len(got) != 1 || got[0] != "first" {
		t.Fatalf("messages = %q, want only the first", got)
	}
}

func TestReadPolicy(t *testing.T) {
	tests := []struct {
		policy    transport.ReadPolicy
		wantMsgs  int
		wantReads int
	}{
		{transport.ReadOnce, 1, 1},
		{transport.ReadUntilBlocked, 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			h := wiretest.NewHarness(t, transport.WithReadPolicy(tt.policy))
			h.Handle.Push([]byte(wiretest.Frame("a")), []byte(wiretest.Frame("b")), []byte(wiretest.Frame("c")))
			h.Handle.Fire(readiness.InterestRead, readiness.Readable)
			h.Pump()

			if n := len(h.Recorder.Messages()); n != tt.wantMsgs {
				t.Errorf("messages = %d, want %d", n, tt.wantMsgs)
			}
			if n := h.Handle.ReadCalls(); n != tt.wantReads {
				t.Errorf("reads = %d, want %d", n, tt.wantReads)
			}
		})
	}
}

func TestReadSize(t *testing.T) {
	h := wiretest.NewHarness(t, transport.WithReadSize(3), transport.WithReadPolicy(transport.ReadUntilBlocked))
	h.Deliver(wiretest.Frame(strings.Repeat("z", 40)))
	wiretest.AssertMessages(t, h.Recorder.Messages(), strings.Repeat("z", 40))
}

func TestStartTwice(t *testing.T) {
	h := wiretest.NewHarness(t)
	if err := h.Transport.Start(); err == nil {
		t.Fatal("second Start succeeded")
	}
}

func TestStartOnClosedLoop(t *testing.T) {
	loop := eventloop.New()
	loop.Close()
	tr := transport.New(wiretest.NewHandle(), loop, transport.Callbacks{})
	if err := tr.Start(); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("Start = %v, want ErrClosed", err)
	}
}

func TestParseReadPolicy(t *testing.T) {
	for in, want := range map[string]transport.ReadPolicy{
		"":              transport.ReadOnce,
		"once":          transport.ReadOnce,
		"until-blocked": transport.ReadUntilBlocked,
	} {
		got, err := transport.ParseReadPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseReadPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := transport.ParseReadPolicy("greedy"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
