package wiretest

import (
	"testing"

	"github.com/gossip-lsp/lspframe/transport"
)

// AssertMessages asserts that got holds exactly the payloads in want, in order.
func AssertMessages(t testing.TB, got [][]byte, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// AssertFailed asserts that exactly one error of kind was reported.
func AssertFailed(t testing.TB, r *Recorder, kind transport.Kind) *transport.Error {
	t.Helper()
	errs := r.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Kind != kind {
		t.Errorf("error kind = %s, want %s (%v)", errs[0].Kind, kind, errs[0])
	}
	return errs[0]
}

// AssertNoErrors asserts that no error was reported.
func AssertNoErrors(t testing.TB, r *Recorder) {
	t.Helper()
	if errs := r.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}
