package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// ListenWebSocket starts an HTTP server with WebSocket upgrade on addr and
// returns the first WebSocket connection as a Conn. Each WebSocket message
// carries a chunk of the framed byte stream. Used by Monaco, Theia and other
// web-based editors.
func ListenWebSocket(addr string) (Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return serveWebSocket(ln), nil
}

func serveWebSocket(ln net.Listener) Conn {
	connCh := make(chan *websocket.Conn, 1)
	released := make(chan struct{})
	handler := websocket.Handler(func(ws *websocket.Conn) {
		select {
		case connCh <- ws:
		default:
			// Only the first client is served.
			return
		}
		<-released
	})

	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("websocket server error", "addr", ln.Addr().String(), "error", err)
		}
	}()

	ws := <-connCh
	c := &wsConn{conn: ws, srv: srv, released: released}
	return NewStream(c)
}

// DialWebSocket connects to a WebSocket endpoint at url.
func DialWebSocket(url, origin string) (Conn, error) {
	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewStream(&wsConn{conn: ws}), nil
}

// wsConn turns WebSocket messages into a byte stream. A message larger than
// the caller's buffer is kept and returned across subsequent reads.
type wsConn struct {
	conn     *websocket.Conn
	srv      *http.Server
	released chan struct{}
	leftover []byte

	closeOnce sync.Once
}

func (w *wsConn) Read(p []byte) (int, error) {
	for len(w.leftover) == 0 {
		var msg []byte
		if err := websocket.Message.Receive(w.conn, &msg); err != nil {
			return 0, err
		}
		w.leftover = msg
	}
	n := copy(p, w.leftover)
	w.leftover = w.leftover[n:]
	return n, nil
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(w.conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.conn.Close()
		if w.released != nil {
			close(w.released)
		}
		if w.srv != nil {
			w.srv.Close()
		}
	})
	return err
}
