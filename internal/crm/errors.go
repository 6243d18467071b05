package crm

import (
	"errors"
	"net/http"
)

var (
	// ErrNotConfigured indicates no CRM base URL or token is set. Callers
	// degrade gracefully where possible rather than failing the request.
	ErrNotConfigured = errors.New("crm is not configured: set base url and access token")

	// ErrMalformedResponse indicates the CRM returned a payload that does
	// not match its documented shape.
	ErrMalformedResponse = errors.New("crm returned a malformed response")

	// ErrWriteFailed indicates the CRM rejected a write. Write-through
	// callers abort the corresponding local mutation.
	ErrWriteFailed = errors.New("crm write failed")

	// ErrNotFound indicates the requested deal or company does not exist.
	ErrNotFound = errors.New("crm object not found")
)

// MapHTTPStatus translates crm errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrWriteFailed), errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
