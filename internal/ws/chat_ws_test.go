package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-chat/internal/models"
)

type staticTokens map[string]string

func (s staticTokens) UserIDFromToken(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func newTestServer(t *testing.T, quiet time.Duration) (*httptest.Server, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil)
	handler := NewWebSocketHandler(hub, NewRouter(hub, nil), staticTokens{"tok-a": "alice", "tok-b": "bob"}, quiet, nil)
	r := gin.New()
	r.GET("/ws", handler.Handle)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvent skips frames until one named event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env models.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Event == event {
			return env.Data
		}
	}
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t, time.Second)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectBroadcastsOnlineUsers(t *testing.T) {
	srv, hub := newTestServer(t, time.Second)

	a := dial(t, srv, "tok-a")
	var ids []string
	require.NoError(t, json.Unmarshal(readEvent(t, a, models.EventOnlineUsers), &ids))
	assert.Equal(t, []string{"alice"}, ids)

	dial(t, srv, "tok-b")
	require.Eventually(t, func() bool { return len(hub.OnlineSnapshot()) == 2 }, time.Second, 10*time.Millisecond)
	require.NoError(t, json.Unmarshal(readEvent(t, a, models.EventOnlineUsers), &ids))
	assert.Equal(t, []string{"alice", "bob"}, ids)
}

func TestDisconnectUnregisters(t *testing.T) {
	srv, hub := newTestServer(t, time.Second)

	a := dial(t, srv, "tok-a")
	readEvent(t, a, models.EventOnlineUsers)
	require.NoError(t, a.Close())

	require.Eventually(t, func() bool { return len(hub.OnlineSnapshot()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestTypingRelayedAndExpires(t *testing.T) {
	srv, hub := newTestServer(t, 50*time.Millisecond)

	a := dial(t, srv, "tok-a")
	b := dial(t, srv, "tok-b")
	require.Eventually(t, func() bool { return len(hub.OnlineSnapshot()) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteJSON(map[string]any{
		"event": models.EventTyping,
		"data":  models.TypingRequest{ToUserID: "bob", IsTyping: true},
	}))

	var ev models.TypingEvent
	require.NoError(t, json.Unmarshal(readEvent(t, b, models.EventTyping), &ev))
	assert.Equal(t, models.TypingEvent{FromUserID: "alice", IsTyping: true}, ev)

	require.NoError(t, json.Unmarshal(readEvent(t, b, models.EventTyping), &ev))
	assert.Equal(t, models.TypingEvent{FromUserID: "alice", IsTyping: false}, ev)
}

func TestHandleFrameIgnoresGarbage(t *testing.T) {
	hub := NewHub(nil)
	c := newClient(nil, ConnInfo{ConnID: "c1", UserID: "alice"}, NewRouter(hub, nil), time.Second, zap.NewNop())
	defer c.Close()

	c.handleFrame([]byte("not json"))
	c.handleFrame([]byte(`{"event":"typing","data":{"isTyping":true}}`))
	c.handleFrame([]byte(`{"event":"typing","data":{"toUserId":"alice","isTyping":true}}`))
	c.handleFrame([]byte(`{"event":"unknown"}`))
}

func TestClientSendAfterClose(t *testing.T) {
	c := newClient(nil, ConnInfo{ConnID: "c1", UserID: "alice"}, NewRouter(NewHub(nil), nil), time.Second, zap.NewNop())
	require.NoError(t, c.Send(models.EventNewMessage, models.Message{ID: "m"}))

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send(models.EventNewMessage, nil), ErrClientClosed)
}

func TestClientSendBufferFull(t *testing.T) {
	c := newClient(nil, ConnInfo{ConnID: "c1"}, NewRouter(NewHub(nil), nil), time.Second, zap.NewNop())
	defer c.Close()

	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, c.Send(models.EventNewMessage, i))
	}
	assert.ErrorIs(t, c.Send(models.EventNewMessage, "overflow"), ErrSlowConsumer)
}
