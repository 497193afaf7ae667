// Payment HTTP handlers.
//
//   - POST /shelters/{id}/donate       (create a provider payment, idempotent with Idempotency-Key)
//   - POST /webhook-callback           (provider notifications)
//   - GET  /partner-link               (shelter owner starts OAuth with the provider)
//   - GET  /partner-link-callback      (provider redirects back with a code)
//   - GET  /auth/users/me/donations    (caller's successful donations)
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Lapkipomoshi/help-paw-backend/internal/http/middleware"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
)

// maxWebhookBytes bounds a provider notification body.
const maxWebhookBytes = 64 << 10

// DonateRequest is the donation payload. Amount is in roubles.
type DonateRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"500.00"`
}

// PartnerLinkResponse carries the provider authorization URL.
type PartnerLinkResponse struct {
	URL string `json:"url"`
}

// PartnerCallbackResponse confirms a connected shelter.
type PartnerCallbackResponse struct {
	Status    string    `json:"status" example:"connected"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WebhookResponse echoes how a notification was handled.
type WebhookResponse struct {
	Outcome string `json:"outcome" example:"applied"`
}

// Donate godoc
// @ID          donate
// @Summary     Donate to a shelter
// @Description Anonymous donations are allowed. Repeating a request with the same Idempotency-Key returns the first confirmation URL and sets Idempotency-Replayed.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Param       id               path      string                  true   "Shelter ID"
// @Param       Idempotency-Key  header    string                  false  "Key for safe retries"
// @Param       body             body      handlers.DonateRequest  true   "Donation"
// @Success     201  {object}  services.DonateResult
// @Success     200  {object}  services.DonateResult  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Shelter not found or payments not configured"
// @Failure     502  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /shelters/{id}/donate [post]
func (h *Handlers) Donate(c *gin.Context) {
	var req DonateRequest
	if !bindJSON(c, &req) {
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.payments.Donate(c.Request.Context(), actor(c), services.DonateInput{
		ShelterID:      c.Param("id"),
		Amount:         req.Amount,
		ClientKey:      middleware.ClientKey(c),
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		ok(c, http.StatusOK, res)
		return
	}
	ok(c, http.StatusCreated, res)
}

// PaymentWebhook godoc
// @ID          paymentWebhook
// @Summary     Payment provider notification
// @Description Unknown payments and unrecognised events are acknowledged with 200 so the provider stops retrying.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /webhook-callback [post]
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	outcome, err := h.payments.Webhook(c.Request.Context(), raw)
	var ve *services.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotFound):
		middleware.LoggerFrom(c).Warn().Str("outcome", outcome).Msg("webhook for unknown payment")
	case errors.As(err, &ve):
		middleware.LoggerFrom(c).Warn().Str("raw_body", string(raw)).Str("reason", ve.Message).Msg("malformed webhook")
		h.writeError(c, err)
		return
	default:
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, WebhookResponse{Outcome: outcome})
}

// PartnerLink godoc
// @ID          partnerLink
// @Summary     Start connecting the caller's shelter to the payment provider
// @Tags        Payments
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.PartnerLinkResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /partner-link [get]
func (h *Handlers) PartnerLink(c *gin.Context) {
	u, err := h.payments.PartnerLink(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, PartnerLinkResponse{URL: u})
}

// PartnerLinkCallback godoc
// @ID          partnerLinkCallback
// @Summary     Payment provider OAuth callback
// @Tags        Payments
// @Produce     json
// @Param       code   query     string  false  "Authorization code"
// @Param       state  query     string  true   "Signed state from /partner-link"
// @Param       error  query     string  false  "Provider error"
// @Success     200  {object}  handlers.PartnerCallbackResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /partner-link-callback [get]
func (h *Handlers) PartnerLinkCallback(c *gin.Context) {
	tok, err := h.payments.PartnerCallback(c.Request.Context(), c.Query("code"), c.Query("state"), c.Query("error"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, PartnerCallbackResponse{Status: "connected", ExpiresAt: tok.ExpiresAt})
}

// MyDonations godoc
// @ID          myDonations
// @Summary     The caller's successful donations
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Param       page       query     int  false  "Page (1-based)"
// @Param       page_size  query     int  false  "Page size (max 100)"
// @Success     200  {object}  services.Page[domain.Donation]
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/users/me/donations [get]
func (h *Handlers) MyDonations(c *gin.Context) {
	page, err := h.payments.History(c.Request.Context(), actor(c), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}
