package readiness

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Source wraps a Notifier and delivers its events on a Dispatcher.
type Source struct {
	notifier   Notifier
	dispatcher Dispatcher
	logger     *slog.Logger
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithSourceLogger sets the logger used for deregistration failures.
func WithSourceLogger(l *slog.Logger) SourceOption {
	return func(s *Source) { s.logger = l }
}

// NewSource creates a Source delivering notifications from n on d.
func NewSource(n Notifier, d Dispatcher, opts ...SourceOption) *Source {
	s := &Source{
		notifier:   n,
		dispatcher: d,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Watch registers interest on the handle. fn runs on the dispatcher for every
// notification until the returned subscription is cancelled.
func (s *Source) Watch(interest Interest, fn func(Event)) (*Subscription, error) {
	sub := &Subscription{interest: interest, logger: s.logger}
	token, err := s.notifier.Register(interest, func(ev Event) {
		if sub.cancelled.Load() {
			return
		}
		s.dispatcher.Post(func() {
			// A cancel may land between the post and this run.
			if sub.cancelled.Load() {
				return
			}
			fn(ev)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("watching %s readiness: %w", interest, err)
	}
	sub.setToken(token)
	return sub, nil
}

// Subscription is an active watch returned by Source.Watch.
type Subscription struct {
	interest  Interest
	logger    *slog.Logger
	cancelled atomic.Bool

	mu    sync.Mutex
	token Token
	once  sync.Once
}

func (s *Subscription) setToken(t Token) {
	s.mu.Lock()
	s.token = t
	s.mu.Unlock()
}

// Interest reports what the subscription watches.
func (s *Subscription) Interest() Interest { return s.interest }

// Active reports whether the subscription has not been cancelled.
func (s *Subscription) Active() bool { return !s.cancelled.Load() }

// Cancel stops delivery and deregisters the handle watch. Once Cancel
// returns, no further event reaches the callback, including ones already
// posted to the dispatcher. Calling Cancel again is a no-op.
func (s *Subscription) Cancel() {
	s.cancelled.Store(true)
	s.once.Do(func() {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		if token == nil {
			return
		}
		if err := token.Deregister(); err != nil {
			s.logger.Debug("readiness deregister failed",
				"interest", s.interest.String(),
				"error", err,
			)
		}
	})
}
