package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gossip-lsp/lspframe/transport"
)

const defaultTracerName = "lspframe"

type tracingConfig struct {
	tracerName string
	tracer     trace.Tracer
	spanName   string
	attrs      []attribute.KeyValue
}

// TracingOption configures a Span observer.
type TracingOption func(*tracingConfig)

// WithTracerName sets the tracer name used with the global provider.
func WithTracerName(name string) TracingOption {
	return func(c *tracingConfig) { c.tracerName = name }
}

// WithTracer uses t instead of the global provider.
func WithTracer(t trace.Tracer) TracingOption {
	return func(c *tracingConfig) { c.tracer = t }
}

// WithSpanName sets the connection span name (default "lspframe.connection").
func WithSpanName(name string) TracingOption {
	return func(c *tracingConfig) { c.spanName = name }
}

// WithAttributes adds attributes to the connection span, such as the medium.
func WithAttributes(attrs ...attribute.KeyValue) TracingOption {
	return func(c *tracingConfig) { c.attrs = append(c.attrs, attrs...) }
}

// Span records one transport's lifetime as an OpenTelemetry span. Messages
// become span events; the span ends when the stream ends, the transport
// fails, or End is called.
type Span struct {
	ctx  context.Context
	span trace.Span

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	endOnce      sync.Once
}

// Tracing starts the connection span as a child of ctx.
func Tracing(ctx context.Context, opts ...TracingOption) *Span {
	config := tracingConfig{
		tracerName: defaultTracerName,
		spanName:   "lspframe.connection",
	}
	for _, opt := range opts {
		opt(&config)
	}
	tracer := config.tracer
	if tracer == nil {
		tracer = otel.Tracer(config.tracerName)
	}
	spanCtx, span := tracer.Start(ctx, config.spanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(config.attrs...),
	)
	return &Span{ctx: spanCtx, span: span}
}

// Context returns a context carrying the connection span.
func (s *Span) Context() context.Context { return s.ctx }

func (s *Span) BytesRead(n int)    { s.bytesRead.Add(int64(n)) }
func (s *Span) BytesWritten(n int) { s.bytesWritten.Add(int64(n)) }

func (s *Span) MessageReceived(size int) {
	s.span.AddEvent("message.received", trace.WithAttributes(
		attribute.Int("lspframe.message.size", size),
	))
}

func (s *Span) MessageQueued(size, pending int) {
	s.span.AddEvent("message.queued", trace.WithAttributes(
		attribute.Int("lspframe.message.size", size),
		attribute.Int("lspframe.pending_bytes", pending),
	))
}

func (s *Span) StreamEnded() {
	s.span.SetStatus(codes.Ok, "")
	s.End()
}

func (s *Span) Failed(err *transport.Error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.span.SetAttributes(attribute.String("lspframe.error.kind", err.Kind.String()))
	s.End()
}

// End records the byte counters and ends the span. Later calls are no-ops.
func (s *Span) End() {
	s.endOnce.Do(func() {
		s.span.SetAttributes(
			attribute.Int64("lspframe.bytes_read", s.bytesRead.Load()),
			attribute.Int64("lspframe.bytes_written", s.bytesWritten.Load()),
		)
		s.span.End()
	})
}
