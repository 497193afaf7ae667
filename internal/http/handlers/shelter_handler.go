package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
	"github.com/Lapkipomoshi/help-paw-backend/internal/utils"
)

// RemovalResponse reports what DELETE /my-shelter did.
type RemovalResponse struct {
	Result services.RemovalResult `json:"result" example:"unapproved"`
}

// AnimalTypeRequest creates an animal type.
type AnimalTypeRequest struct {
	Slug string `json:"slug" example:"cats"`
	Name string `json:"name" example:"Кошки"`
}

// ListShelters godoc
// @ID          listShelters
// @Summary     List approved shelters
// @Description Filters are AND-combined. is_favourite and is_helped only narrow results for authenticated callers.
// @Tags        Shelters
// @Produce     json
// @Param       animal_type   query     string  false  "Animal type slug"
// @Param       warnings      query     string  false  "Urgency bucket (red, yellow, green)"
// @Param       is_favourite  query     bool    false  "Only (or never) favourites"
// @Param       is_helped     query     bool    false  "Only (or never) shelters the caller donated to"
// @Param       search        query     string  false  "Name or address substring"
// @Param       page          query     int     false  "Page (1-based)"
// @Param       page_size     query     int     false  "Page size (max 100)"
// @Success     200  {object}  services.Page[services.ShelterListItem]
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /shelters [get]
func (h *Handlers) ListShelters(c *gin.Context) {
	opts, err := filter.ParseShelterOptions(c.Request.URL.Query())
	if err != nil {
		h.writeError(c, err)
		return
	}
	page, err := h.shelters.List(c.Request.Context(), actor(c), opts, pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// SheltersOnMain godoc
// @ID          sheltersOnMain
// @Summary     Random approved shelters for the landing page
// @Tags        Shelters
// @Produce     json
// @Param       limit  query     int  false  "Sample size (default 6)"
// @Success     200    {array}   services.ShelterListItem
// @Router      /shelters/on-main [get]
func (h *Handlers) SheltersOnMain(c *gin.Context) {
	limit := utils.AtoiDefault(strings.TrimSpace(c.Query("limit")), services.DefaultOnMainLimit)
	items, err := h.shelters.OnMain(c.Request.Context(), actor(c), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetShelter godoc
// @ID          getShelter
// @Summary     Shelter detail
// @Description Unapproved shelters are visible to their owner and staff only.
// @Tags        Shelters
// @Produce     json
// @Param       id   path      string  true  "Shelter ID"
// @Success     200  {object}  services.ShelterDetail
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /shelters/{id} [get]
func (h *Handlers) GetShelter(c *gin.Context) {
	sh, err := h.shelters.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, sh)
}

// RegisterShelter godoc
// @ID          registerShelter
// @Summary     Register a shelter
// @Description The caller becomes the shelter owner; the shelter waits for staff approval.
// @Tags        Shelters
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.ShelterInput  true  "Shelter"
// @Success     201   {object}  domain.Shelter
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Failure     409   {object}  handlers.ErrorResponse
// @Failure     503   {object}  handlers.ErrorResponse
// @Router      /shelters [post]
func (h *Handlers) RegisterShelter(c *gin.Context) {
	var in services.ShelterInput
	if !bindJSON(c, &in) {
		return
	}
	sh, err := h.shelters.Register(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, sh)
}

// GetMyShelter godoc
// @ID          getMyShelter
// @Summary     The caller's shelter
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.ShelterDetail
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /my-shelter [get]
func (h *Handlers) GetMyShelter(c *gin.Context) {
	sh, err := h.shelters.Own(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, sh)
}

// UpdateMyShelter godoc
// @ID          updateMyShelter
// @Summary     Update the caller's shelter
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.ShelterInput  true  "Shelter"
// @Success     200   {object}  domain.Shelter
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /my-shelter [patch]
func (h *Handlers) UpdateMyShelter(c *gin.Context) {
	var in services.ShelterInput
	if !bindJSON(c, &in) {
		return
	}
	sh, err := h.shelters.UpdateOwn(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, sh)
}

// DeleteMyShelter godoc
// @ID          deleteMyShelter
// @Summary     Withdraw the caller's shelter
// @Description An approved shelter is hidden pending review; an unapproved one is deleted and its owner demoted.
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.RemovalResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /my-shelter [delete]
func (h *Handlers) DeleteMyShelter(c *gin.Context) {
	res, err := h.shelters.RemoveOwn(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, RemovalResponse{Result: res})
}

// DeleteShelter godoc
// @ID          deleteShelter
// @Summary     Delete a shelter (staff)
// @Tags        Shelters
// @Security    BearerAuth
// @Param       id  path  string  true  "Shelter ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /shelters/{id} [delete]
func (h *Handlers) DeleteShelter(c *gin.Context) {
	if err := h.shelters.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// ApproveShelter godoc
// @ID          approveShelter
// @Summary     Approve a shelter (staff)
// @Tags        Shelters
// @Security    BearerAuth
// @Param       id  path  string  true  "Shelter ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /shelters/{id}/approve [post]
func (h *Handlers) ApproveShelter(c *gin.Context) {
	if err := h.shelters.Approve(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// AddFavourite godoc
// @ID          addFavourite
// @Summary     Add a shelter to favourites
// @Tags        Shelters
// @Security    BearerAuth
// @Param       id  path  string  true  "Shelter ID"
// @Success     204
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /shelters/{id}/favourite [post]
func (h *Handlers) AddFavourite(c *gin.Context) {
	if err := h.shelters.AddFavourite(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// RemoveFavourite godoc
// @ID          removeFavourite
// @Summary     Remove a shelter from favourites
// @Tags        Shelters
// @Security    BearerAuth
// @Param       id  path  string  true  "Shelter ID"
// @Success     204
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /shelters/{id}/favourite [delete]
func (h *Handlers) RemoveFavourite(c *gin.Context) {
	if err := h.shelters.RemoveFavourite(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// ListAnimalTypes godoc
// @ID          listAnimalTypes
// @Summary     Animal types
// @Tags        Shelters
// @Produce     json
// @Success     200  {array}  domain.AnimalType
// @Router      /animal-types [get]
func (h *Handlers) ListAnimalTypes(c *gin.Context) {
	types, err := h.shelters.AnimalTypes(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, types)
}

// CreateAnimalType godoc
// @ID          createAnimalType
// @Summary     Add an animal type (staff)
// @Tags        Shelters
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.AnimalTypeRequest  true  "Animal type"
// @Success     201   {object}  domain.AnimalType
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /animal-types [post]
func (h *Handlers) CreateAnimalType(c *gin.Context) {
	var req AnimalTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	at, err := h.shelters.CreateAnimalType(c.Request.Context(), actor(c), req.Slug, req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, at)
}
