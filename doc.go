// Package lspframe serves a single LSP base-protocol connection over any of
// the usual media: stdio, TCP, Unix domain sockets, named pipes, WebSocket
// and Node.js IPC. Incoming payloads are handed to a Handler; outgoing
// payloads are framed and written as the handle becomes writable.
//
// A minimal echo server:
//
//	lspframe.Serve(ctx, lspframe.HandlerFunc(func(s *lspframe.Session, p []byte) {
//		s.Send(p)
//	}), lspframe.FromArgs())
//
// The framing, readiness and transport layers live in the frame, readiness
// and transport packages and can be used without Serve.
package lspframe
