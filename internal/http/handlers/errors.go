// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them. Generic
// codes mirror HTTP status semantics; domain codes (payment_not_configured,
// provider_unavailable) name failures the status alone cannot convey.
// Validation failures carry the more specific code chosen by the service
// layer (for example no_chat_with_own_shelter) together with per-field
// messages.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_error",
//	  "message": "invalid input",
//	  "fields": {"tin": "already registered"}
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodePaymentNotConfigured = "payment_not_configured"
	ErrCodeProviderUnavailable  = "provider_unavailable"
	ErrCodeBadGateway           = "bad_gateway"
	ErrCodeInvalidQuery         = "invalid_query"
)
