package ingest

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidURL indicates the link is not a fetchable http(s) URL.
	ErrInvalidURL = errors.New("invalid link URL")
	// ErrFetchFailed indicates the remote host could not be reached at all.
	ErrFetchFailed = errors.New("link fetch failed")
)

// MapHTTPStatus maps ingestion errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrInvalidURL) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrFetchFailed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
