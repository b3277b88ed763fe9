// Package wiretest provides testing utilities for code built on the
// transport package: a scripted readiness handle, a callback recorder and a
// harness that steps the event loop deterministically.
package wiretest

import (
	"testing"

	"github.com/gossip-lsp/lspframe/eventloop"
	"github.com/gossip-lsp/lspframe/readiness"
	"github.com/gossip-lsp/lspframe/transport"
)

// maxFlushRounds bounds Flush so a handle that never drains fails the test
// instead of hanging it.
const maxFlushRounds = 10000

// Harness wires a Transport to a scripted Handle and an event loop that only
// runs when the test pumps it.
type Harness struct {
	t         testing.TB
	Loop      *eventloop.Loop
	Handle    *Handle
	Recorder  *Recorder
	Transport *transport.Transport
}

// NewHarness creates and starts a Transport over a fresh Handle.
func NewHarness(t testing.TB, opts ...transport.Option) *Harness {
	t.Helper()
	h := &Harness{
		t:        t,
		Loop:     eventloop.New(),
		Handle:   NewHandle(),
		Recorder: NewRecorder(),
	}
	h.Transport = transport.New(h.Handle, h.Loop, h.Recorder.Callbacks(), opts...)
	if err := h.Transport.Start(); err != nil {
		t.Fatalf("start transport: %v", err)
	}
	h.Pump()
	t.Cleanup(func() {
		h.Transport.Close()
		h.Loop.Close()
	})
	return h
}

// Pump runs every queued task and returns how many ran.
func (h *Harness) Pump() int { return h.Loop.RunPending() }

// Deliver queues each chunk and reports it readable, pumping after each.
func (h *Harness) Deliver(chunks ...string) {
	for _, c := range chunks {
		h.Handle.PushString(c)
		h.Handle.Fire(readiness.InterestRead, readiness.Readable)
		h.Pump()
	}
}

// Hangup reports the read side closed.
func (h *Harness) Hangup() {
	h.Handle.Fire(readiness.InterestRead, readiness.Closed)
	h.Pump()
}

// Flush reports writability until the transport disarms its write watch.
// It returns the number of writable events delivered.
func (h *Harness) Flush() int {
	h.t.Helper()
	rounds := 0
	for h.Handle.Active(readiness.InterestWrite) {
		if rounds == maxFlushRounds {
			h.t.Fatalf("write watch still armed after %d writable events", rounds)
		}
		h.Handle.Fire(readiness.InterestWrite, readiness.Writable)
		h.Pump()
		rounds++
	}
	return rounds
}
