package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebattle-server/domain"
)

type fakeHandler struct {
	admit        bool
	messages     []string
	disconnected int
	mu           sync.Mutex
}

func (f *fakeHandler) Connect(conn domain.Connection) bool {
	conn.Send([]byte(`{"type":"WAITING"}`))
	return f.admit
}

func (f *fakeHandler) Handle(conn domain.Connection, data []byte) {
	f.mu.Lock()
	f.messages = append(f.messages, string(data))
	f.mu.Unlock()
	conn.Send(data)
}

func (f *fakeHandler) Disconnect(domain.Connection) {
	f.mu.Lock()
	f.disconnected++
	f.mu.Unlock()
}

func (f *fakeHandler) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...), f.disconnected
}

func serve(t *testing.T, h domain.MessageHandler) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		NewConn("c1", "r1", ws, h).Start()
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConn_RoundTrip(t *testing.T) {
	h := &fakeHandler{admit: true}
	client := serve(t, h)

	_, greeting, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"WAITING"}`, string(greeting))

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"action":"SUBMIT_CODE","code":"x"}`)))
	_, echo, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"action":"SUBMIT_CODE","code":"x"}`, string(echo))

	client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	assert.Eventually(t, func() bool {
		_, n := h.snapshot()
		return n == 1
	}, time.Second, 5*time.Millisecond)
}

func TestConn_RejectedFlushesThenCloses(t *testing.T) {
	h := &fakeHandler{admit: false}
	client := serve(t, h)

	_, greeting, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"WAITING"}`, string(greeting))

	// the handler closes rejected connections; here the socket stays open
	// until the server drops it, and no read loop runs
	client.WriteMessage(websocket.TextMessage, []byte(`{"action":"SUBMIT_CODE"}`))
	time.Sleep(20 * time.Millisecond)
	msgs, disconnected := h.snapshot()
	assert.Empty(t, msgs)
	assert.Zero(t, disconnected)
}

func TestConn_SendAfterClose(t *testing.T) {
	c := &Conn{id: "c1", room: "r1", send: make(chan []byte, 1)}

	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), domain.ErrSendBufferFull)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send([]byte("c")), domain.ErrConnClosed)
}
