package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
)

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"  hi  ":               "hi",
		"a\r\nb":               "a\nb",
		"a\rb":                 "a\nb",
		"a\n\n\n\n\nb":         "a\n\nb",
		"\r\n\r\n\r\n":         "",
		"keep\n\nparagraphs\n": "keep\n\nparagraphs",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeText(in), "input %q", in)
	}
}

func TestSendMessage_SanitizesAndCreates(t *testing.T) {
	var got string
	h := New(Services{Messages: stubMessages{
		send: func(_ context.Context, _ *access.Actor, chatID, text string) (*domain.Message, error) {
			got = text
			return &domain.Message{ID: "m1", ChatID: chatID, Text: text}, nil
		},
	}})
	r := newTestEngine(t)
	r.POST("/chats/:id/send-message", h.SendMessage)

	w := do(r, http.MethodPost, "/chats/c1/send-message", `{"text":"  hello\r\n\r\n\r\n\r\nthere  "}`, testActorHeader, "u1:user")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "hello\n\nthere", got)
	assert.Contains(t, w.Body.String(), `"chat_id":"c1"`)
}

func TestListMessages_ETagRoundTrip(t *testing.T) {
	mod := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lists := 0
	h := New(Services{Messages: stubMessages{
		stats: func(context.Context, *access.Actor, string) (services.ChatStats, error) {
			return services.ChatStats{Count: 3, LastModified: &mod}, nil
		},
		list: func(context.Context, *access.Actor, string, services.PageRequest) (*services.Page[domain.Message], error) {
			lists++
			return &services.Page[domain.Message]{Count: 3, Results: []domain.Message{}}, nil
		},
	}})
	r := newTestEngine(t)
	r.GET("/chats/:id/messages", h.ListMessages)

	w := do(r, http.MethodGet, "/chats/c1/messages", "", testActorHeader, "u1:user")
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Contains(t, etag, "messages:c1:3:")

	w = do(r, http.MethodGet, "/chats/c1/messages", "", testActorHeader, "u1:user", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Equal(t, 1, lists)

	// Another page is a different representation.
	w = do(r, http.MethodGet, "/chats/c1/messages?page=2", "", testActorHeader, "u1:user", "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, etag, w.Header().Get("ETag"))
}

func TestListMessages_NonParticipantForbidden(t *testing.T) {
	h := New(Services{Messages: stubMessages{
		stats: func(context.Context, *access.Actor, string) (services.ChatStats, error) {
			return services.ChatStats{}, access.ErrForbidden
		},
	}})
	r := newTestEngine(t)
	r.GET("/chats/:id/messages", h.ListMessages)

	w := do(r, http.MethodGet, "/chats/c1/messages", "", testActorHeader, "u2:user")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))
}

func TestStartChat_CreatedVsExisting(t *testing.T) {
	created := true
	h := New(Services{Chats: stubChats{
		start: func(_ context.Context, a *access.Actor, shelterID string) (*domain.Chat, bool, error) {
			return &domain.Chat{ID: "c1", ShelterID: shelterID, UserID: a.ID}, created, nil
		},
	}})
	r := newTestEngine(t)
	r.POST("/shelters/:id/start-chat", h.StartChat)

	w := do(r, http.MethodPost, "/shelters/s1/start-chat", "", testActorHeader, "u1:user")
	assert.Equal(t, http.StatusCreated, w.Code)

	created = false
	w = do(r, http.MethodPost, "/shelters/s1/start-chat", "", testActorHeader, "u1:user")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"shelter_id":"s1"`)
}

func socketHandlers(hub Subscriber) *Handlers {
	return New(Services{
		Users: stubUsers{authenticate: func(_ context.Context, tok string) (*access.Actor, error) {
			if tok != "good" {
				return nil, errors.New("bad token")
			}
			return &access.Actor{ID: "u1", Role: domain.RoleUser}, nil
		}},
		Chats: stubChats{get: func(_ context.Context, a *access.Actor, id string) (*domain.Chat, error) {
			if !a.Authenticated() {
				return nil, access.ErrUnauthenticated
			}
			return &domain.Chat{ID: id, UserID: a.ID}, nil
		}},
		Hub: hub,
	})
}

func TestChatSocket_TokenQuery(t *testing.T) {
	var gotChat, gotUser string
	hub := stubHub{serve: func(c *gin.Context, up *websocket.Upgrader, chatID, userID string) error {
		require.NotNil(t, up)
		gotChat, gotUser = chatID, userID
		c.String(http.StatusOK, "upgraded")
		return nil
	}}
	r := newTestEngine(t)
	r.GET("/chats/:id/ws", socketHandlers(hub).ChatSocket)

	w := do(r, http.MethodGet, "/chats/c1/ws?token=bad", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/chats/c1/ws", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/chats/c1/ws?token=good", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "upgraded", w.Body.String())
	assert.Equal(t, "c1", gotChat)
	assert.Equal(t, "u1", gotUser)
}

func TestChatSocket_DisabledHub(t *testing.T) {
	r := newTestEngine(t)
	r.GET("/chats/:id/ws", socketHandlers(nil).ChatSocket)

	w := do(r, http.MethodGet, "/chats/c1/ws", "", testActorHeader, "u1:user")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "realtime updates are disabled")
}
