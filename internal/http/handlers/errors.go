// Package handlers defines the HTTP-layer error codes used across all API
// endpoints and the mapping from service errors to status/code pairs.
//
// Conventions:
//   - Codes are lowercase snake_case and stable across releases.
//   - Generic codes (bad_request, unauthorized, not_found) mirror common HTTP
//     status semantics; domain codes (lock_conflict, fetch_failed) carry
//     business outcomes that a status alone cannot convey.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/retailpulse/go-inventory-backend/internal/eweb"
	"github.com/retailpulse/go-inventory-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeLockConflict     = "lock_conflict"
	ErrCodeFetchFailed      = "fetch_failed"
	ErrCodePrecondition     = "precondition_failed"
	ErrCodeChatDisabled     = "chat_disabled"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failFromError translates a service error into the envelope. Handlers call it
// for any error they do not special-case themselves.
func failFromError(c *gin.Context, err error) {
	status, code := statusFor(err)
	fail(c, status, code, err.Error())
}

// statusFor maps a service error to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	var fe *eweb.FetchError
	switch {
	case errors.Is(err, services.ErrLockConflict):
		return http.StatusConflict, ErrCodeLockConflict
	case errors.Is(err, services.ErrInvalidArgument), errors.Is(err, services.ErrEmptyMessage):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrItemNotFound), errors.Is(err, services.ErrRunNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrPrecondition):
		return http.StatusUnprocessableEntity, ErrCodePrecondition
	case errors.Is(err, services.ErrChatDisabled):
		return http.StatusServiceUnavailable, ErrCodeChatDisabled
	case errors.As(err, &fe):
		return http.StatusBadGateway, ErrCodeFetchFailed
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
