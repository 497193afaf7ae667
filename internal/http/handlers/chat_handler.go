// Chat HTTP handlers.
//
// This file exposes REST endpoints for conversations between a user and a
// shelter:
//   - POST   /shelters/{id}/start-chat  (get or create)
//   - GET    /chats                     (caller's chats, paginated)
//   - GET    /my-shelter/chats          (chats on the caller's shelter)
//   - GET    /chats/{id}, DELETE /chats/{id}
//
// Only the two participants can see or delete a chat.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartChat godoc
// @ID          startChat
// @Summary     Start a chat with a shelter
// @Description Returns the existing chat when there is one (200) or creates it (201). Owners cannot chat with their own shelter.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Shelter ID"
// @Success     200  {object}  domain.Chat
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "no_chat_with_own_shelter"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /shelters/{id}/start-chat [post]
func (h *Handlers) StartChat(c *gin.Context) {
	ch, created, err := h.chats.Start(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     The caller's chats
// @Description Most recently active first.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       page       query     int  false  "Page (1-based)"
// @Param       page_size  query     int  false  "Page size (max 100)"
// @Success     200  {object}  services.Page[domain.Chat]
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	page, err := h.chats.ListMine(c.Request.Context(), actor(c), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ListShelterChats godoc
// @ID          listShelterChats
// @Summary     Chats on the caller's shelter
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Param       page       query     int  false  "Page (1-based)"
// @Param       page_size  query     int  false  "Page size (max 100)"
// @Success     200  {object}  services.Page[domain.Chat]
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /my-shelter/chats [get]
func (h *Handlers) ListShelterChats(c *gin.Context) {
	page, err := h.chats.ListShelter(c.Request.Context(), actor(c), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// GetChat godoc
// @ID          getChat
// @Summary     Chat detail
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Chat ID"  format(uuid)
// @Success     200  {object}  domain.Chat
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	ch, err := h.chats.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// DeleteChat godoc
// @ID          deleteChat
// @Summary     Delete a chat and its messages
// @Tags        Chats
// @Security    BearerAuth
// @Param       id  path  string  true  "Chat ID"  format(uuid)
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /chats/{id} [delete]
func (h *Handlers) DeleteChat(c *gin.Context) {
	if err := h.chats.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}
