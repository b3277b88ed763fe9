package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/gossip-lsp/lspframe/transport"
)

// Metrics counts transport activity in process. It may be shared between
// transports: the counters then sum over all of them, but PendingBytes
// reports whichever transport enqueued last.
type Metrics struct {
	bytesRead        atomic.Int64
	bytesWritten     atomic.Int64
	messagesReceived atomic.Int64
	messagesQueued   atomic.Int64
	pendingBytes     atomic.Int64
	streamsEnded     atomic.Int64

	mu       sync.Mutex
	failures map[transport.Kind]int64
}

// NewMetrics creates a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{failures: make(map[transport.Kind]int64)}
}

func (m *Metrics) BytesRead(n int)     { m.bytesRead.Add(int64(n)) }
func (m *Metrics) BytesWritten(n int)  { m.bytesWritten.Add(int64(n)) }
func (m *Metrics) MessageReceived(int) { m.messagesReceived.Add(1) }
func (m *Metrics) StreamEnded()        { m.streamsEnded.Add(1) }

func (m *Metrics) MessageQueued(_, pending int) {
	m.messagesQueued.Add(1)
	m.pendingBytes.Store(int64(pending))
}

func (m *Metrics) Failed(err *transport.Error) {
	m.mu.Lock()
	m.failures[err.Kind]++
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of Metrics. PendingBytes is the outgoing
// backlog at the last enqueue.
type Snapshot struct {
	BytesRead        int64
	BytesWritten     int64
	MessagesReceived int64
	MessagesQueued   int64
	PendingBytes     int64
	StreamsEnded     int64
	Failures         map[transport.Kind]int64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	failures := make(map[transport.Kind]int64, len(m.failures))
	for k, v := range m.failures {
		failures[k] = v
	}
	m.mu.Unlock()
	return Snapshot{
		BytesRead:        m.bytesRead.Load(),
		BytesWritten:     m.bytesWritten.Load(),
		MessagesReceived: m.messagesReceived.Load(),
		MessagesQueued:   m.messagesQueued.Load(),
		PendingBytes:     m.pendingBytes.Load(),
		StreamsEnded:     m.streamsEnded.Load(),
		Failures:         failures,
	}
}
