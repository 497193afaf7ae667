package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
)

//
// News
//

// ListNews godoc
// @ID          listNews
// @Summary     News for the main page
// @Tags        News
// @Produce     json
// @Param       page       query     int  false  "Page (1-based)"
// @Param       page_size  query     int  false  "Page size (max 100)"
// @Success     200  {object}  services.Page[domain.News]
// @Router      /news [get]
func (h *Handlers) ListNews(c *gin.Context) {
	page, err := h.news.ListMain(c.Request.Context(), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// GetNews godoc
// @ID          getNews
// @Summary     News detail
// @Tags        News
// @Produce     json
// @Param       id   path      string  true  "News ID"
// @Success     200  {object}  domain.News
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /news/{id} [get]
func (h *Handlers) GetNews(c *gin.Context) {
	n, err := h.news.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// ListShelterNews godoc
// @ID          listShelterNews
// @Summary     News of a shelter
// @Tags        News
// @Produce     json
// @Param       id   path      string  true  "Shelter ID"
// @Success     200  {object}  services.Page[domain.News]
// @Router      /shelters/{id}/news [get]
func (h *Handlers) ListShelterNews(c *gin.Context) {
	page, err := h.news.ListForShelter(c.Request.Context(), c.Param("id"), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// CreateNews godoc
// @ID          createNews
// @Summary     Publish platform news (staff)
// @Description Platform news always appears on the main page.
// @Tags        News
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.ArticleInput  true  "Article"
// @Success     201   {object}  domain.News
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /news [post]
func (h *Handlers) CreateNews(c *gin.Context) {
	var in services.ArticleInput
	if !bindJSON(c, &in) {
		return
	}
	n, err := h.news.CreatePlatform(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, n)
}

// UpdateNews godoc
// @ID          updateNews
// @Summary     Update news (staff)
// @Tags        News
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "News ID"
// @Param       body  body      services.ArticleInput  true  "Article"
// @Success     200   {object}  domain.News
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /news/{id} [patch]
func (h *Handlers) UpdateNews(c *gin.Context) {
	var in services.ArticleInput
	if !bindJSON(c, &in) {
		return
	}
	n, err := h.news.UpdateStaff(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// DeleteNews godoc
// @ID          deleteNews
// @Summary     Delete news (staff)
// @Tags        News
// @Security    BearerAuth
// @Param       id  path  string  true  "News ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /news/{id} [delete]
func (h *Handlers) DeleteNews(c *gin.Context) {
	if err := h.news.DeleteStaff(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// ListMyNews godoc
// @ID          listMyNews
// @Summary     News of the caller's shelter
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.Page[domain.News]
// @Router      /my-shelter/news [get]
func (h *Handlers) ListMyNews(c *gin.Context) {
	page, err := h.news.ListOwn(c.Request.Context(), actor(c), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// CreateMyNews godoc
// @ID          createMyNews
// @Summary     Publish shelter news
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.ArticleInput  true  "Article"
// @Success     201   {object}  domain.News
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /my-shelter/news [post]
func (h *Handlers) CreateMyNews(c *gin.Context) {
	var in services.ArticleInput
	if !bindJSON(c, &in) {
		return
	}
	n, err := h.news.CreateOwn(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, n)
}

// UpdateMyNews godoc
// @ID          updateMyNews
// @Summary     Update shelter news
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "News ID"
// @Param       body  body      services.ArticleInput  true  "Article"
// @Success     200   {object}  domain.News
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /my-shelter/news/{id} [patch]
func (h *Handlers) UpdateMyNews(c *gin.Context) {
	var in services.ArticleInput
	if !bindJSON(c, &in) {
		return
	}
	n, err := h.news.UpdateOwn(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// DeleteMyNews godoc
// @ID          deleteMyNews
// @Summary     Delete shelter news
// @Tags        My shelter
// @Security    BearerAuth
// @Param       id  path  string  true  "News ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /my-shelter/news/{id} [delete]
func (h *Handlers) DeleteMyNews(c *gin.Context) {
	if err := h.news.DeleteOwn(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

//
// Help articles
//

// ListHelpArticles godoc
// @ID          listHelpArticles
// @Summary     Help articles
// @Description With search, results are ranked by relevance.
// @Tags        Help
// @Produce     json
// @Param       search  query    string  false  "Free-text query"
// @Success     200     {array}  domain.HelpArticle
// @Router      /help-articles [get]
func (h *Handlers) ListHelpArticles(c *gin.Context) {
	items, err := h.help.List(c.Request.Context(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetHelpArticle godoc
// @ID          getHelpArticle
// @Summary     Help article detail
// @Tags        Help
// @Produce     json
// @Param       id   path      string  true  "Article ID"
// @Success     200  {object}  domain.HelpArticle
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /help-articles/{id} [get]
func (h *Handlers) GetHelpArticle(c *gin.Context) {
	a, err := h.help.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// CreateHelpArticle godoc
// @ID          createHelpArticle
// @Summary     Add a help article (staff)
// @Tags        Help
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.ArticleInput  true  "Article"
// @Success     201   {object}  domain.HelpArticle
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /help-articles [post]
func (h *Handlers) CreateHelpArticle(c *gin.Context) {
	var in services.ArticleInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.help.CreateStaff(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// UpdateHelpArticle godoc
// @ID          updateHelpArticle
// @Summary     Update a help article (staff)
// @Tags        Help
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "Article ID"
// @Param       body  body      services.ArticleInput  true  "Article"
// @Success     200   {object}  domain.HelpArticle
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /help-articles/{id} [patch]
func (h *Handlers) UpdateHelpArticle(c *gin.Context) {
	var in services.ArticleInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.help.UpdateStaff(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// DeleteHelpArticle godoc
// @ID          deleteHelpArticle
// @Summary     Delete a help article (staff)
// @Tags        Help
// @Security    BearerAuth
// @Param       id  path  string  true  "Article ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /help-articles/{id} [delete]
func (h *Handlers) DeleteHelpArticle(c *gin.Context) {
	if err := h.help.DeleteStaff(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

//
// FAQ
//

// ListFAQ godoc
// @ID          listFAQ
// @Summary     Frequently asked questions
// @Tags        FAQ
// @Produce     json
// @Param       search  query    string  false  "Free-text query"
// @Success     200     {array}  domain.FAQ
// @Router      /faq [get]
func (h *Handlers) ListFAQ(c *gin.Context) {
	items, err := h.faq.List(c.Request.Context(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetFAQ godoc
// @ID          getFAQ
// @Summary     FAQ entry
// @Tags        FAQ
// @Produce     json
// @Param       id   path      string  true  "FAQ ID"
// @Success     200  {object}  domain.FAQ
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /faq/{id} [get]
func (h *Handlers) GetFAQ(c *gin.Context) {
	f, err := h.faq.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, f)
}

// CreateFAQ godoc
// @ID          createFAQ
// @Summary     Add a FAQ entry (staff)
// @Tags        FAQ
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.FAQInput  true  "Entry"
// @Success     201   {object}  domain.FAQ
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /faq [post]
func (h *Handlers) CreateFAQ(c *gin.Context) {
	var in services.FAQInput
	if !bindJSON(c, &in) {
		return
	}
	f, err := h.faq.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, f)
}

// UpdateFAQ godoc
// @ID          updateFAQ
// @Summary     Update a FAQ entry (staff)
// @Tags        FAQ
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string            true  "FAQ ID"
// @Param       body  body      services.FAQInput  true  "Entry"
// @Success     200   {object}  domain.FAQ
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /faq/{id} [patch]
func (h *Handlers) UpdateFAQ(c *gin.Context) {
	var in services.FAQInput
	if !bindJSON(c, &in) {
		return
	}
	f, err := h.faq.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, f)
}

// DeleteFAQ godoc
// @ID          deleteFAQ
// @Summary     Delete a FAQ entry (staff)
// @Tags        FAQ
// @Security    BearerAuth
// @Param       id  path  string  true  "FAQ ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /faq/{id} [delete]
func (h *Handlers) DeleteFAQ(c *gin.Context) {
	if err := h.faq.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

//
// Gallery
//

// UploadImage godoc
// @ID          uploadImage
// @Summary     Upload a gallery image
// @Description Staff and shelter owners only. Images are limited to 5 MiB.
// @Tags        Gallery
// @Accept      mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       file  formData  file  true  "Image"
// @Success     201   {object}  domain.Image
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /images [post]
func (h *Handlers) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		failFields(c, http.StatusBadRequest, services.CodeValidation, "invalid input", map[string]string{"file": "multipart field is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer f.Close()

	img, err := h.images.Upload(c.Request.Context(), actor(c), fh.Filename, f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, img)
}
