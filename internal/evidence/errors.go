package evidence

import (
	"errors"
	"net/http"
)

var (
	// ErrUnsupportedFormat indicates a file extension the normalizer does
	// not handle. Expected formats never raise errors; they degrade to
	// sentinel text instead.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// MapHTTPStatus maps evidence errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrUnsupportedFormat) {
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}
