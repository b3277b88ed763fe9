package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		kind   Kind
		method string
	}{
		{"request int id", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, KindRequest, "initialize"},
		{"request string id", `{"jsonrpc":"2.0","id":"a","method":"shutdown"}`, KindRequest, "shutdown"},
		{"notification", `{"jsonrpc":"2.0","method":"initialized","params":{}}`, KindNotification, "initialized"},
		{"null id is a notification", `{"jsonrpc":"2.0","id":null,"method":"exit"}`, KindNotification, "exit"},
		{"result", `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`, KindResponse, ""},
		{"null result", `{"jsonrpc":"2.0","id":1,"result":null}`, KindResponse, ""},
		{"error", `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`, KindResponse, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.input))
			if err != nil {
				t.Fatalf("DecodeMessage: %v", err)
			}
			if msg.Kind() != tt.kind {
				t.Fatalf("kind = %s, want %s", msg.Kind(), tt.kind)
			}
			switch m := msg.(type) {
			case *Request:
				if m.Method != tt.method {
					t.Errorf("method = %q", m.Method)
				}
			case *Notification:
				if m.Method != tt.method {
					t.Errorf("method = %q", m.Method)
				}
			}
		})
	}
}

func TestDecodeMessageInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  int
	}{
		{"not json", `Content-Length`, CodeParseError},
		{"empty object", `{}`, CodeInvalidRequest},
		{"bad id", `{"jsonrpc":"2.0","id":true,"method":"x"}`, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.input))
			var rpcErr *Error
			if !errors.As(err, &rpcErr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if rpcErr.Code != tt.code {
				t.Errorf("code = %d, want %d", rpcErr.Code, tt.code)
			}
		})
	}
}

func TestMarshalStampsVersion(t *testing.T) {
	data, err := Marshal(&Notification{Method: "$/progress"})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"jsonrpc":"2.0","method":"$/progress"}` {
		t.Errorf("Marshal = %s", got)
	}

	data, err = Marshal(&Response{ID: IntID(3)})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"jsonrpc":"2.0","id":3,"result":null}` {
		t.Errorf("Marshal empty response = %s", got)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse(StringID("x"), map[string]int{"n": 1}, nil)
	if string(resp.Result) != `{"n":1}` || resp.Error != nil {
		t.Errorf("result response = %+v", resp)
	}

	resp = NewResponse(IntID(1), nil, &Error{Code: CodeRequestCancelled, Message: "cancelled"})
	if resp.Error == nil || resp.Error.Code != CodeRequestCancelled {
		t.Errorf("error response = %+v", resp)
	}

	resp = NewResponse(IntID(1), nil, errors.New("boom"))
	if resp.Error == nil || resp.Error.Code != CodeInternalError || resp.Error.Message != "boom" {
		t.Errorf("plain error response = %+v", resp.Error)
	}

	resp = NewResponse(IntID(1), nil, nil)
	if string(resp.Result) != "null" {
		t.Errorf("nil result = %s", resp.Result)
	}
}

func TestIDRoundTrip(t *testing.T) {
	for _, id := range []ID{IntID(42), StringID("abc"), {}} {
		data, err := json.Marshal(id)
		if err != nil {
			t.Fatal(err)
		}
		var got ID
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if got.Value() != id.Value() {
			t.Errorf("round trip %s = %s", id, got)
		}
	}
}
