package jsonrpc

import (
	"fmt"
	"log/slog"
)

// Sender queues a payload for framing and writing. *transport.Transport
// implements it.
type Sender interface {
	Send(payload []byte)
}

// Endpoint writes JSON-RPC messages through a Sender. It keeps no request
// state: responses are not matched to requests and incoming methods are not
// dispatched.
type Endpoint struct {
	sender Sender
	logger *slog.Logger
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithLogger sets the endpoint logger.
func WithLogger(l *slog.Logger) EndpointOption {
	return func(e *Endpoint) { e.logger = l }
}

// NewEndpoint creates an Endpoint writing through s.
func NewEndpoint(s Sender, opts ...EndpointOption) *Endpoint {
	e := &Endpoint{sender: s, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Send marshals msg and queues it.
func (e *Endpoint) Send(msg Message) error {
	data, err := Marshal(msg)
	if err != nil {
		return err
	}
	e.sender.Send(data)
	return nil
}

// Notify sends a notification.
func (e *Endpoint) Notify(method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	e.logger.Debug("sending notification", "method", method)
	return e.Send(&Notification{Method: method, Params: raw})
}

// Request sends a request with a caller-chosen id.
func (e *Endpoint) Request(id ID, method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return fmt.Errorf("request %s: %w", method, err)
	}
	e.logger.Debug("sending request", "method", method, "id", id.String())
	return e.Send(&Request{ID: id, Method: method, Params: raw})
}

// Reply sends the response to request id. A non-nil err is sent as the
// error object.
func (e *Endpoint) Reply(id ID, result any, err error) error {
	return e.Send(NewResponse(id, result, err))
}

// Decoder adapts fn to a payload callback such as transport.Callbacks.OnMessage.
// Payloads that are not valid JSON-RPC reach fn with a nil Message and the
// *Error describing the problem.
func Decoder(fn func(Message, error)) func(payload []byte) {
	return func(payload []byte) {
		fn(DecodeMessage(payload))
	}
}
