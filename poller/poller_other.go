//go:build !linux

package poller

import (
	"context"
	"os"

	"github.com/gossip-lsp/lspframe/readiness"
)

// Poller is unavailable on this platform.
type Poller struct{}

// New returns ErrUnsupported.
func New(opts ...Option) (*Poller, error) { return nil, ErrUnsupported }

func (p *Poller) Run(ctx context.Context) error { return ErrUnsupported }
func (p *Poller) Close() error                  { return nil }

// Open returns ErrUnsupported.
func (p *Poller) Open(rfd, wfd int) (*FD, error) { return nil, ErrUnsupported }

// OpenFile returns ErrUnsupported.
func (p *Poller) OpenFile(f *os.File) (*FD, error) { return nil, ErrUnsupported }

// FD is unavailable on this platform.
type FD struct{}

func (f *FD) Read(b []byte) (int, error)  { return 0, ErrUnsupported }
func (f *FD) Write(b []byte) (int, error) { return 0, ErrUnsupported }
func (f *FD) Close() error                { return nil }

func (f *FD) Register(readiness.Interest, func(readiness.Event)) (readiness.Token, error) {
	return nil, ErrUnsupported
}
