package crmsync

import (
	"errors"
	"net/http"

	"github.com/strata-vc/dealdesk/internal/crm"
	"github.com/strata-vc/dealdesk/internal/records"
)

var (
	// ErrNotLinked indicates the record has no CRM deal linked yet.
	ErrNotLinked = errors.New("record is not linked to a crm deal")

	// ErrAlreadyLinked indicates the record already has a CRM deal.
	ErrAlreadyLinked = errors.New("record is already linked to a crm deal")

	// ErrInvalidPriority indicates an unrecognized priority value.
	ErrInvalidPriority = errors.New("invalid priority value")
)

// MapHTTPStatus translates crmsync errors to HTTP status codes, deferring to
// the crm and records taxonomies for wrapped upstream errors.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotLinked), errors.Is(err, ErrAlreadyLinked),
		errors.Is(err, ErrInvalidPriority):
		return http.StatusBadRequest
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crm.ErrNotConfigured), errors.Is(err, crm.ErrNotFound),
		errors.Is(err, crm.ErrWriteFailed), errors.Is(err, crm.ErrMalformedResponse):
		return crm.MapHTTPStatus(err)
	default:
		return http.StatusInternalServerError
	}
}
