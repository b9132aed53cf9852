package transport

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP requests to WebSocket connections. Origins are not
// checked; identity is carried by the protocol itself.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

// NewWebSocketConn wraps an upgraded connection. Each text message carries one
// protocol line. A message over maxLine fails the connection: gorilla returns
// websocket.ErrReadLimit and every later read fails too.
func NewWebSocketConn(ws *websocket.Conn, maxLine int, writeTimeout time.Duration) Conn {
	if maxLine > 0 {
		ws.SetReadLimit(int64(maxLine))
	}
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

func (w *wsConn) ReadLine() ([]byte, error) {
	for {
		kind, data, err := w.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return bytes.TrimSpace(data), nil
	}
}

func (w *wsConn) WriteLine(line []byte) error {
	if w.writeTimeout > 0 {
		if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.ws.WriteMessage(websocket.TextMessage, line)
}

func (w *wsConn) Close() error {
	w.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		w.closeErr = w.ws.Close()
	})
	return w.closeErr
}

func (w *wsConn) RemoteAddr() string {
	if addr := w.ws.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
