package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	go h.Run(ctx)

	r := gin.New()
	up := Upgrader(nil)
	r.GET("/ws/:chat", func(c *gin.Context) {
		_ = h.Serve(c, up, c.Param("chat"), "u1")
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, chat string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + chat
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, chat string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers(chat) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishReachesRoomOnly(t *testing.T) {
	h, srv := startHub(t)
	a := dial(t, srv, "chat-a")
	b := dial(t, srv, "chat-b")
	waitSubscribers(t, h, "chat-a", 1)
	waitSubscribers(t, h, "chat-b", 1)

	h.Publish("chat-a", EventMessageNew, map[string]string{"text": "hello"})

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := a.ReadMessage()
	require.NoError(t, err)
	var ev struct {
		Type   string            `json:"type"`
		ChatID string            `json:"chat_id"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, EventMessageNew, ev.Type)
	assert.Equal(t, "chat-a", ev.ChatID)
	assert.Equal(t, "hello", ev.Data["text"])

	_ = b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = b.ReadMessage()
	assert.Error(t, err, "other rooms must not receive the event")
}

func TestHub_ClientLeaves(t *testing.T) {
	h, srv := startHub(t)
	c := dial(t, srv, "chat-x")
	waitSubscribers(t, h, "chat-x", 1)

	require.NoError(t, c.Close())
	waitSubscribers(t, h, "chat-x", 0)
}

func TestHub_PublishAfterStopDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	go h.Run(ctx)
	cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish("c", EventMessageNew, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stopped hub")
	}
	assert.Equal(t, 0, h.Subscribers("c"))
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	up := Upgrader([]string{"https://lapkipomoshi.ru"})
	req := httptest.NewRequest("GET", "/", nil)
	assert.True(t, up.CheckOrigin(req))
	req.Header.Set("Origin", "https://lapkipomoshi.ru")
	assert.True(t, up.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.test")
	assert.False(t, up.CheckOrigin(req))
}
