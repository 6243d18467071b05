package records

import (
	"errors"
	"net/http"
)

// Domain errors for record operations.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDocumentAbsent = errors.New("document not found on record")
	ErrInvalidPatch   = errors.New("invalid record patch")
	ErrInvalidInput   = errors.New("invalid input")
	ErrFileTooLarge   = errors.New("file exceeds maximum upload size")
)

// MapHTTPStatus maps record domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDocumentAbsent) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidPatch) || errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}
