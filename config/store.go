package config

import (
	"sync"
	"sync/atomic"
)

// Store holds the current settings. Reads are lock-free; swaps are
// serialized so listeners see changes in the order they were made.
type Store[T any] struct {
	cur atomic.Pointer[T]

	swapMu    sync.Mutex
	listeners []func(prev, next *T)
}

// NewStore creates a Store holding initial.
func NewStore[T any](initial *T) *Store[T] {
	s := new(Store[T])
	s.cur.Store(initial)
	return s
}

// Get returns the current value.
func (s *Store[T]) Get() *T { return s.cur.Load() }

// Swap installs next, runs the listeners, and returns the previous value.
// Listeners must not call Swap or OnChange.
func (s *Store[T]) Swap(next *T) *T {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()
	prev := s.cur.Swap(next)
	for _, fn := range s.listeners {
		fn(prev, next)
	}
	return prev
}

// OnChange registers fn to run after every Swap.
func (s *Store[T]) OnChange(fn func(prev, next *T)) {
	s.swapMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.swapMu.Unlock()
}

// Reloader loads a file into a Store.
type Reloader[T any] struct {
	store    *Store[T]
	path     string
	defaults *T
}

// NewReloader creates a Reloader for path. Missing keys keep their defaults.
func NewReloader[T any](store *Store[T], path string, defaults *T) *Reloader[T] {
	return &Reloader[T]{store: store, path: path, defaults: defaults}
}

// Reload loads the file and swaps it into the store. On error the store is
// left untouched.
func (r *Reloader[T]) Reload() error {
	cfg, err := Load(r.path, r.defaults)
	if err != nil {
		return err
	}
	r.store.Swap(cfg)
	return nil
}
