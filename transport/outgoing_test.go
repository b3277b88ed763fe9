package transport

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gossip-lsp/lspframe/readiness"
)

// limitWriter accepts at most n bytes per Write.
type limitWriter struct {
	n   int
	buf bytes.Buffer
	err error
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	return w.buf.Write(p)
}

func TestOutgoingDrainInOrder(t *testing.T) {
	tests := []struct {
		name  string
		limit int
	}{
		{"one byte", 1},
		{"odd", 7},
		{"exact item", 5},
		{"unbounded", 1 << 20},
	}
	items := []string{"first", "second item", "x", "the last one"}
	want := "firstsecond itemxthe last one"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewOutgoingBuffer()
			for _, it := range items {
				b.Enqueue([]byte(it))
			}
			if b.Pending() != len(want) {
				t.Fatalf("Pending = %d, want %d", b.Pending(), len(want))
			}
			w := &limitWriter{n: tt.limit}
			total := 0
			for rounds := 0; b.Len() > 0; rounds++ {
				if rounds > len(want) {
					t.Fatal("drain did not make progress")
				}
				n, err := b.Drain(w)
				if err != nil {
					t.Fatalf("Drain: %v", err)
				}
				total += n
			}
			if got := w.buf.String(); got != want {
				t.Errorf("written %q, want %q", got, want)
			}
			if total != len(want) || b.Pending() != 0 {
				t.Errorf("total = %d, pending = %d", total, b.Pending())
			}
		})
	}
}

func TestOutgoingPartialWriteResumes(t *testing.T) {
	b := NewOutgoingBuffer()
	b.Enqueue([]byte("abcdef"))
	b.Enqueue([]byte("gh"))

	w := &limitWriter{n: 4}
	if n, err := b.Drain(w); n != 4 || err != nil {
		t.Fatalf("first Drain = %d, %v", n, err)
	}
	if b.Len() != 2 || b.Pending() != 4 {
		t.Fatalf("Len = %d, Pending = %d", b.Len(), b.Pending())
	}
	if n, err := b.Drain(w); n != 4 || err != nil {
		t.Fatalf("second Drain = %d, %v", n, err)
	}
	if got := w.buf.String(); got != "abcdefgh" {
		t.Errorf("written %q", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d after full drain", b.Len())
	}
}

func TestOutgoingEmpty(t *testing.T) {
	b := NewOutgoingBuffer()
	b.Enqueue(nil)
	w := &limitWriter{n: 10}
	if n, err := b.Drain(w); n != 0 || err != nil {
		t.Fatalf("Drain on empty = %d, %v", n, err)
	}
	if w.buf.Len() != 0 {
		t.Error("empty buffer wrote bytes")
	}
}

func TestOutgoingWouldBlock(t *testing.T) {
	b := NewOutgoingBuffer()
	b.Enqueue([]byte("data"))
	w := &limitWriter{err: readiness.ErrWouldBlock}
	if n, err := b.Drain(w); n != 0 || err != nil {
		t.Fatalf("Drain = %d, %v; want 0, nil", n, err)
	}
	if b.Pending() != 4 {
		t.Errorf("Pending = %d", b.Pending())
	}
}

func TestOutgoingWriteError(t *testing.T) {
	boom := errors.New("broken pipe")
	b := NewOutgoingBuffer()
	b.Enqueue([]byte("data"))
	w := &limitWriter{err: boom}
	if _, err := b.Drain(w); !errors.Is(err, boom) {
		t.Fatalf("Drain error = %v, want %v", err, boom)
	}
}

type badWriter struct{}

func (badWriter) Write(p []byte) (int, error) { return len(p) + 1, nil }

func TestOutgoingInvalidCount(t *testing.T) {
	b := NewOutgoingBuffer()
	b.Enqueue([]byte("data"))
	if _, err := b.Drain(badWriter{}); !errors.Is(err, errInvalidWrite) {
		t.Fatalf("Drain error = %v", err)
	}
}
