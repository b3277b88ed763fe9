// Package poller supplies readiness handles backed by the operating system's
// readiness mechanism. On Linux it uses level-triggered epoll; other
// platforms get a stub whose constructor reports ErrUnsupported, and callers
// fall back to transport.NewStream.
package poller

import (
	"errors"
	"log/slog"
)

var (
	// ErrUnsupported is returned on platforms without an epoll backend.
	ErrUnsupported = errors.New("poller: platform not supported")
	// ErrClosed is returned by operations on a closed Poller.
	ErrClosed = errors.New("poller: closed")
	// ErrNotPollable is returned by Open for descriptors the kernel cannot
	// watch, such as regular files.
	ErrNotPollable = errors.New("poller: descriptor not pollable")
)

// Option configures a Poller.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	maxEvents int
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMaxEvents sets how many events a single wait may return (default 128).
func WithMaxEvents(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEvents = n
		}
	}
}

func newConfig(opts []Option) config {
	c := config{logger: slog.Default(), maxEvents: 128}
	for _, o := range opts {
		o(&c)
	}
	return c
}
