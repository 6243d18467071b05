package feedback

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates the requested feedback entry does not exist.
	ErrNotFound = errors.New("feedback entry not found")

	// ErrDuplicate indicates a signature collision outside the dedup path.
	ErrDuplicate = errors.New("feedback entry already exists")

	// ErrInvalidEntry indicates a malformed feedback submission.
	ErrInvalidEntry = errors.New("invalid feedback entry")
)

// MapHTTPStatus translates feedback errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidEntry):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
