package scoring

import (
	"errors"
	"net/http"

	"github.com/strata-vc/dealdesk/internal/records"
)

var (
	// ErrAssembleFailed indicates evidence context assembly failed.
	ErrAssembleFailed = errors.New("evidence assembly failed")

	// ErrJudgeFailed indicates the agent judgment pass failed.
	ErrJudgeFailed = errors.New("score judgment failed")

	// ErrFinalizeFailed indicates aggregation of the judged scores failed.
	ErrFinalizeFailed = errors.New("score finalization failed")

	// ErrInvalidOverride indicates an override score outside 0-100 or an
	// unknown category or criterion.
	ErrInvalidOverride = errors.New("invalid score override")

	// ErrNotScored indicates an override was requested before any scoring
	// pass has produced a score.
	ErrNotScored = errors.New("record has not been scored")
)

// MapHTTPStatus translates scoring errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidOverride), errors.Is(err, ErrNotScored):
		return http.StatusBadRequest
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAssembleFailed), errors.Is(err, ErrJudgeFailed),
		errors.Is(err, ErrFinalizeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
