// Package telemetry provides transport.Observer implementations: structured
// logging, in-process counters, Prometheus metrics and OpenTelemetry spans.
// Observers compose with Multi.
package telemetry

import "github.com/gossip-lsp/lspframe/transport"

// Multi fans every notification out to observers in the order given.
// Nil entries are skipped.
func Multi(observers ...transport.Observer) transport.Observer {
	var list multi
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multi []transport.Observer

func (m multi) BytesRead(n int) {
	for _, o := range m {
		o.BytesRead(n)
	}
}

func (m multi) BytesWritten(n int) {
	for _, o := range m {
		o.BytesWritten(n)
	}
}

func (m multi) MessageReceived(size int) {
	for _, o := range m {
		o.MessageReceived(size)
	}
}

func (m multi) MessageQueued(size, pending int) {
	for _, o := range m {
		o.MessageQueued(size, pending)
	}
}

func (m multi) StreamEnded() {
	for _, o := range m {
		o.StreamEnded()
	}
}

func (m multi) Failed(err *transport.Error) {
	for _, o := range m {
		o.Failed(err)
	}
}
