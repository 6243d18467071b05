package feedback

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/strata-vc/dealdesk/pkg/handlers"
	"github.com/strata-vc/dealdesk/pkg/pagination"
	"github.com/strata-vc/dealdesk/pkg/routes"
)

// Handler provides HTTP endpoints for feedback operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination
// config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "feedback"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for feedback endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/feedback",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Append},
			{Method: "GET", Pattern: "", Handler: h.List},
		},
	}
}

// Append records a thesis-fit feedback entry. Duplicate submissions return
// the existing entry with 200 rather than creating a second row.
func (h *Handler) Append(w http.ResponseWriter, r *http.Request) {
	var cmd AppendCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidEntry)
		return
	}

	entry, err := h.sys.Append(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, entry)
}

// List returns feedback entries newest-first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.List(r.Context(), page)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
