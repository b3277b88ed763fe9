package telemetry

import (
	"context"
	"log/slog"

	"github.com/gossip-lsp/lspframe/transport"
)

// Logging returns an Observer that logs message traffic at debug level,
// end of stream at info level and failures at error level.
func Logging(logger *slog.Logger) transport.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logObserver{logger: logger}
}

type logObserver struct {
	logger *slog.Logger
}

func (l *logObserver) BytesRead(int)    {}
func (l *logObserver) BytesWritten(int) {}

func (l *logObserver) MessageReceived(size int) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "message received",
		slog.Int("size", size),
	)
}

func (l *logObserver) MessageQueued(size, pending int) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "message queued",
		slog.Int("size", size),
		slog.Int("pending_bytes", pending),
	)
}

func (l *logObserver) StreamEnded() {
	l.logger.Info("peer closed the stream")
}

func (l *logObserver) Failed(err *transport.Error) {
	l.logger.LogAttrs(context.Background(), slog.LevelError, "transport failed",
		slog.String("kind", err.Kind.String()),
		slog.String("op", err.Op),
		slog.String("error", err.Err.Error()),
	)
}
