// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint: the error
// envelope, the single service-error translation (writeError), and small
// request helpers for pagination and the caller's identity.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "shelter not found"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/http/middleware"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
	"github.com/Lapkipomoshi/help-paw-backend/internal/utils"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
	// Per-field validation messages
	Fields map[string]string `json:"fields,omitempty"`
}

// fail aborts the request with the error envelope. 5xx responses are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failFields(c, status, code, msg, nil)
}

func failFields(c *gin.Context, status int, code, msg string, fields map[string]string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Fields:    fields,
	})
}

// Fail is the exported variant of fail for the router's fallback handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// writeError translates a service error into a response. Anything it does
// not recognise is a 500 and is reported to operators.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var (
		ve *services.ValidationError
		pe *services.ProviderError
		qe *filter.ParseError
	)
	switch {
	case errors.As(err, &ve):
		failFields(c, http.StatusBadRequest, ve.Code, ve.Message, ve.Fields)
	case errors.As(err, &qe):
		failFields(c, http.StatusBadRequest, ErrCodeInvalidQuery, qe.Error(), map[string]string{qe.Param: "invalid value"})
	case errors.Is(err, services.ErrPaymentNotConfigured):
		fail(c, http.StatusNotFound, ErrCodePaymentNotConfigured, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, access.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, access.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeProviderUnavailable, "upstream service unavailable, try again later")
	case errors.As(err, &pe):
		middleware.LoggerFrom(c).Warn().Int("provider_status", pe.Status).Str("provider_body", pe.Body).Msg("payment provider rejected request")
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, "payment provider rejected the request")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the answer.
		c.Abort()
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled error")
		if h != nil && h.alert != nil {
			h.alert.Report(context.WithoutCancel(c.Request.Context()), err, map[string]string{
				"request_id": middleware.RequestIDFrom(c),
				"method":     c.Request.Method,
				"route":      c.FullPath(),
			})
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// bindJSON decodes the body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// actor returns the authenticated caller or nil.
func actor(c *gin.Context) *access.Actor { return access.FromContext(c) }

// pageRequest reads page and page_size; bounds are applied by the services.
func pageRequest(c *gin.Context) services.PageRequest {
	return services.PageRequest{
		Page: utils.AtoiDefault(strings.TrimSpace(c.Query("page")), 1),
		Size: utils.AtoiDefault(strings.TrimSpace(c.Query("page_size")), 0),
	}
}
