package readiness

import (
	"errors"
	"testing"
)

type queueDispatcher struct {
	tasks []func()
}

func (q *queueDispatcher) Post(fn func()) bool {
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *queueDispatcher) runAll() {
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		fn()
	}
}

type fakeNotifier struct {
	fns          map[Interest]func(Event)
	deregistered map[Interest]int
	registerErr  error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		fns:          make(map[Interest]func(Event)),
		deregistered: make(map[Interest]int),
	}
}

func (n *fakeNotifier) Register(interest Interest, fn func(Event)) (Token, error) {
	if n.registerErr != nil {
		return nil, n.registerErr
	}
	n.fns[interest] = fn
	return TokenFunc(func() error {
		n.deregistered[interest]++
		delete(n.fns, interest)
		return nil
	}), nil
}

func (n *fakeNotifier) fire(interest Interest, ev Event) {
	if fn := n.fns[interest]; fn != nil {
		fn(ev)
	}
}

func TestWatchDeliversOnDispatcher(t *testing.T) {
	n := newFakeNotifier()
	d := &queueDispatcher{}
	src := NewSource(n, d)

	var got []Event
	sub, err := src.Watch(InterestRead, func(ev Event) { got = append(got, ev) })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !sub.Active() {
		t.Fatal("new subscription should be active")
	}

	n.fire(InterestRead, Readable)
	n.fire(InterestRead, Closed)
	if len(got) != 0 {
		t.Fatalf("events delivered before dispatcher ran: %v", got)
	}

	d.runAll()
	if len(got) != 2 || got[0] != Readable || got[1] != Closed {
		t.Fatalf("got %v, want [readable closed]", got)
	}
}

func TestCancelDropsPostedEvents(t *testing.T) {
	n := newFakeNotifier()
	d := &queueDispatcher{}
	src := NewSource(n, d)

	calls := 0
	sub, err := src.Watch(InterestWrite, func(Event) { calls++ })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	n.fire(InterestWrite, Writable)
	sub.Cancel()
	d.runAll()

	if calls != 0 {
		t.Fatalf("callback ran %d times after cancel", calls)
	}
	if n.deregistered[InterestWrite] != 1 {
		t.Fatalf("deregistered %d times, want 1", n.deregistered[InterestWrite])
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	n := newFakeNotifier()
	src := NewSource(n, &queueDispatcher{})

	sub, err := src.Watch(InterestRead, func(Event) {})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	sub.Cancel()
	sub.Cancel()

	if sub.Active() {
		t.Fatal("cancelled subscription reports active")
	}
	if n.deregistered[InterestRead] != 1 {
		t.Fatalf("deregistered %d times, want 1", n.deregistered[InterestRead])
	}
}

func TestWatchRegisterError(t *testing.T) {
	n := newFakeNotifier()
	n.registerErr = errors.New("boom")
	src := NewSource(n, &queueDispatcher{})

	_, err := src.Watch(InterestRead, func(Event) {})
	if !errors.Is(err, n.registerErr) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestEventStrings(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Readable, "readable"},
		{Writable, "writable"},
		{Closed, "closed"},
		{Event(9), "Event(9)"},
	}
	for _, tt := range tests {
		if got := tt.ev.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.ev, got, tt.want)
		}
	}
}
