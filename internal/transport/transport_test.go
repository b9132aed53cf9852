package transport

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineConn_ReadLines(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	lc := NewLineConn(server, 32, time.Second)
	defer lc.Close()

	go func() {
		_, _ = io.WriteString(client, "{\"type\":\"JOIN\"}\r\n")
		_, _ = io.WriteString(client, strings.Repeat("x", 100)+"\n")
		_, _ = io.WriteString(client, "after\n")
		_, _ = io.WriteString(client, "tail")
		client.Close()
	}()

	line, err := lc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"JOIN"}`, string(line))

	_, err = lc.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)

	line, err = lc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "after", string(line))

	line, err = lc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(line))

	_, err = lc.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineConn_WriteLine(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	lc := NewLineConn(server, 0, time.Second)
	defer lc.Close()

	shared := make([]byte, 0, 64)
	shared = append(shared, `{"type":"SYSTEM"}`...)

	go func() {
		_ = lc.WriteLine(shared)
	}()

	got, err := bufio.NewReader(client).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "{\"type\":\"SYSTEM\"}\n", got)
	assert.Equal(t, `{"type":"SYSTEM"}`, string(shared[:len(shared)]))
	assert.Equal(t, byte(0), shared[:cap(shared)][len(shared)])
}

func TestLineConn_WriteTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	lc := NewLineConn(server, 0, 20*time.Millisecond)
	defer lc.Close()

	// Nobody reads from client, so the write must give up.
	err := lc.WriteLine([]byte("blocked"))
	require.Error(t, err)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestWebSocketConn_RoundTrip(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewWebSocketConn(ws, 1024, time.Second)
		defer c.Close()

		line, err := c.ReadLine()
		if err != nil {
			return
		}
		received <- string(line)
		_ = c.WriteLine([]byte(`{"type":"SYSTEM","msg":"ok"}`))
		_, _ = c.ReadLine()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(" {\"type\":\"JOIN\"}\n")))
	select {
	case got := <-received:
		assert.Equal(t, `{"type":"JOIN"}`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the line")
	}

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SYSTEM","msg":"ok"}`, string(msg))
}

func TestWebSocketConn_OversizedMessageFailsConnection(t *testing.T) {
	readErr := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewWebSocketConn(ws, 64, time.Second)
		defer c.Close()

		_, err = c.ReadLine()
		readErr <- err
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 200))))
	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, websocket.ErrReadLimit)
		assert.NotErrorIs(t, err, ErrLineTooLong)
	case <-time.After(2 * time.Second):
		t.Fatal("server read did not return")
	}
}
