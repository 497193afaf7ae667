// Package services implements the help-paw business logic on top of the repo
// layer. This file centralizes service-level error values so that handlers
// can translate them into HTTP responses in one place.
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a write that lost a race against a concurrent one,
	// for example a double-submitted shelter registration.
	ErrConflict = errors.New("conflict")

	// ErrUnauthenticated and ErrForbidden are the authorization outcomes.
	ErrUnauthenticated = access.ErrUnauthenticated
	ErrForbidden       = access.ErrForbidden

	// ErrUnavailable reports that an upstream dependency (payment provider,
	// geocoder) could not be reached or failed.
	ErrUnavailable = errors.New("upstream service unavailable")

	// ErrPaymentNotConfigured is returned when a shelter has not connected a
	// payment account.
	ErrPaymentNotConfigured = errors.New("shelter has no payment account")
)

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(resource string) error { return &NotFoundError{Resource: resource} }

// missing translates a repo miss into a *NotFoundError for resource.
func missing(err error, resource string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return notFound(resource)
	}
	return err
}

// ValidationError is a client error. Fields maps input names to messages.
type ValidationError struct {
	Code    string
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Validation error codes.
const (
	CodeValidation         = "validation_error"
	CodeNoChatWithOwn      = "no_chat_with_own_shelter"
	CodeAlreadyOwner       = "already_has_shelter"
	CodeTokenExpired       = "payment_token_expired"
	CodeInvalidToken       = "invalid_token"
	CodeProviderRejected   = "provider_rejected"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInactiveUser       = "inactive_user"
)

func invalid(code, msg string) *ValidationError {
	return &ValidationError{Code: code, Message: msg}
}

func invalidField(field, msg string) *ValidationError {
	return &ValidationError{Code: CodeValidation, Message: "invalid input", Fields: map[string]string{field: msg}}
}

// fieldErrors accumulates per-field problems.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Code: CodeValidation, Message: "invalid input", Fields: f}
}

// ProviderError is a payment provider rejection that the client cannot fix.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider rejected request: status %d", e.Status)
}
