// Message HTTP handlers.
//
// This file exposes endpoints for messages inside a chat:
//   - POST   /chats/{id}/send-message
//   - GET    /chats/{id}/messages             (newest first, weak ETag)
//   - PATCH  /chats/{id}/messages/{msg_id}    (author only)
//   - DELETE /chats/{id}/messages/{msg_id}    (author only)
//   - POST   /chats/{id}/read                 (read receipts)
//   - GET    /chats/{id}/ws                   (websocket push of the above)
//
// Text is normalized here (line endings, runs of blank lines); length and
// emptiness are enforced by MessageService.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/http/middleware"
)

//
// DTOs
//

// MessageRequest is the payload for sending or editing a message.
type MessageRequest struct {
	Text string `json:"text" example:"Здравствуйте! Можно приехать в субботу?"`
}

// ReadResponse reports how many messages were marked read.
type ReadResponse struct {
	Marked int64 `json:"marked"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeText converts CRLF/CR to LF and collapses long blank runs.
func sanitizeText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Stores the message and pushes it to the chat's websocket subscribers.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                   true  "Chat ID"  format(uuid)
// @Param       body  body      handlers.MessageRequest  true  "Message"
// @Success     201   {object}  domain.Message
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /chats/{id}/send-message [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req MessageRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.messages.Send(c.Request.Context(), actor(c), c.Param("id"), sanitizeText(req.Text))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     Messages of a chat
// @Description Newest first. Supports a weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    string  true   "Chat ID"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page (1-based)"       minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"       minimum(1) maximum(100) default(20)
// @Success     200  {object}  services.Page[domain.Message]
// @Header      200  {string}  ETag  "Weak ETag for the current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)
	chatID := c.Param("id")
	p := pageRequest(c)

	st, err := h.messages.Stats(ctx, a, chatID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var ts int64
	if st.LastModified != nil {
		ts = st.LastModified.UnixNano()
	}
	etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, chatID, st.Count, ts, p.Page, p.Size)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	page, err := h.messages.ListPage(ctx, a, chatID, p)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// EditMessage godoc
// @ID          editMessage
// @Summary     Edit one of the caller's messages
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path      string                   true  "Chat ID"     format(uuid)
// @Param       msg_id  path      string                   true  "Message ID"  format(uuid)
// @Param       body    body      handlers.MessageRequest  true  "New text"
// @Success     200     {object}  domain.Message
// @Failure     400     {object}  handlers.ErrorResponse
// @Failure     403     {object}  handlers.ErrorResponse
// @Failure     404     {object}  handlers.ErrorResponse
// @Router      /chats/{id}/messages/{msg_id} [patch]
func (h *Handlers) EditMessage(c *gin.Context) {
	var req MessageRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.messages.Edit(c.Request.Context(), actor(c), c.Param("id"), c.Param("msg_id"), sanitizeText(req.Text))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Delete one of the caller's messages
// @Tags        Messages
// @Security    BearerAuth
// @Param       id      path  string  true  "Chat ID"     format(uuid)
// @Param       msg_id  path  string  true  "Message ID"  format(uuid)
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/messages/{msg_id} [delete]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	if err := h.messages.Delete(c.Request.Context(), actor(c), c.Param("id"), c.Param("msg_id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// MarkRead godoc
// @ID          markRead
// @Summary     Mark the other side's messages as read
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Chat ID"  format(uuid)
// @Success     200  {object}  handlers.ReadResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	n, err := h.messages.MarkRead(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ReadResponse{Marked: n})
}

// ChatSocket godoc
// @ID          chatSocket
// @Summary     Subscribe to a chat over websocket
// @Description Browsers cannot set headers on a websocket handshake, so the access token may also be passed as ?token=.
// @Tags        Messages
// @Param       id     path   string  true   "Chat ID"  format(uuid)
// @Param       token  query  string  false  "Access token"
// @Success     101
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id}/ws [get]
func (h *Handlers) ChatSocket(c *gin.Context) {
	ctx := c.Request.Context()
	a := actor(c)
	if !a.Authenticated() {
		if tok := strings.TrimSpace(c.Query("token")); tok != "" {
			var err error
			if a, err = h.users.Authenticate(ctx, tok); err != nil {
				fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid access token")
				return
			}
			access.SetActor(c, a)
		}
	}

	ch, err := h.chats.Get(ctx, a, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.hub == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "realtime updates are disabled")
		return
	}
	// The upgrader answers handshake failures itself.
	if err := h.hub.Serve(c, h.upgrader, ch.ID, a.ID); err != nil {
		middleware.LoggerFrom(c).Debug().Err(err).Str("chat_id", ch.ID).Msg("websocket upgrade failed")
		c.Abort()
	}
}
