// Package jsonrpc carries JSON-RPC 2.0 messages as transport payloads. It
// encodes and classifies messages; it does not dispatch methods or correlate
// responses with requests.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version stamped on every outgoing message.
const Version = "2.0"

// RawMessage is a raw JSON value that delays unmarshaling.
type RawMessage = json.RawMessage

// Kind classifies a decoded message.
type Kind int

const (
	KindRequest Kind = iota + 1
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is implemented by Request, Notification and Response.
type Message interface {
	Kind() Kind
}

// Request expects a Response carrying the same ID.
type Request struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      ID         `json:"id"`
	Method  string     `json:"method"`
	Params  RawMessage `json:"params,omitempty"`
}

func (*Request) Kind() Kind { return KindRequest }

// Notification expects no response.
type Notification struct {
	JSONRPC string     `json:"jsonrpc"`
	Method  string     `json:"method"`
	Params  RawMessage `json:"params,omitempty"`
}

func (*Notification) Kind() Kind { return KindNotification }

// Response answers a Request. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      ID         `json:"id"`
	Result  RawMessage `json:"result,omitempty"`
	Error   *Error     `json:"error,omitempty"`
}

func (*Response) Kind() Kind { return KindResponse }

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message) }

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// LSP-specific error codes.
const (
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
)

// ID is a request ID: an integer, a string, or absent.
type ID struct {
	value any
}

// IntID creates an integer ID.
func IntID(v int64) ID { return ID{value: v} }

// StringID creates a string ID.
func StringID(v string) ID { return ID{value: v} }

func (id ID) IsValid() bool { return id.value != nil }
func (id ID) Value() any    { return id.value }

func (id ID) String() string {
	switch v := id.value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprint(v)
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = nil
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		id.value = n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.value = s
		return nil
	}
	return &Error{Code: CodeInvalidRequest, Message: "id must be a number, string, or null"}
}

// envelope is the union of all message fields, used for classification.
type envelope struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      *ID        `json:"id,omitempty"`
	Method  string     `json:"method,omitempty"`
	Params  RawMessage `json:"params,omitempty"`
	Result  RawMessage `json:"result,omitempty"`
	Error   *Error     `json:"error,omitempty"`
}

// DecodeMessage parses a payload into a *Request, *Notification or
// *Response. Malformed JSON and objects that are none of the three yield a
// *Error with CodeParseError or CodeInvalidRequest.
func DecodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return nil, rpcErr
		}
		return nil, &Error{Code: CodeParseError, Message: "failed to parse JSON-RPC message"}
	}

	switch {
	case env.Method != "" && env.ID != nil && env.ID.IsValid():
		return &Request{JSONRPC: env.JSONRPC, ID: *env.ID, Method: env.Method, Params: env.Params}, nil
	case env.Method != "":
		return &Notification{JSONRPC: env.JSONRPC, Method: env.Method, Params: env.Params}, nil
	case env.Result != nil || env.Error != nil:
		resp := &Response{JSONRPC: env.JSONRPC, Result: env.Result, Error: env.Error}
		if env.ID != nil {
			resp.ID = *env.ID
		}
		return resp, nil
	default:
		return nil, &Error{Code: CodeInvalidRequest, Message: "message has neither method nor result"}
	}
}

// Marshal encodes msg, stamping the protocol version.
func Marshal(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Request:
		m.JSONRPC = Version
	case *Notification:
		m.JSONRPC = Version
	case *Response:
		m.JSONRPC = Version
		if m.Result == nil && m.Error == nil {
			m.Result = RawMessage("null")
		}
	default:
		return nil, fmt.Errorf("jsonrpc: cannot marshal %T", msg)
	}
	return json.Marshal(msg)
}

// NewResponse creates a response for id. A non-nil err becomes the error
// object; otherwise result is marshaled.
func NewResponse(id ID, result any, err error) *Response {
	resp := &Response{JSONRPC: Version, ID: id}
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			resp.Error = rpcErr
		} else {
			resp.Error = &Error{Code: CodeInternalError, Message: err.Error()}
		}
		return resp
	}
	data, merr := marshalParams(result)
	if merr != nil {
		resp.Error = &Error{Code: CodeInternalError, Message: merr.Error()}
		return resp
	}
	if data == nil {
		data = RawMessage("null")
	}
	resp.Result = data
	return resp
}

func marshalParams(v any) (RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case RawMessage:
		return p, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling params: %w", err)
	}
	return data, nil
}
