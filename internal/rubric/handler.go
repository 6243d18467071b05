package rubric

import (
	"log/slog"
	"net/http"

	"github.com/strata-vc/dealdesk/pkg/handlers"
	"github.com/strata-vc/dealdesk/pkg/routes"
)

// Handler provides HTTP endpoints for rubric operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "rubric"),
	}
}

// Routes returns the route group definition for rubric endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/rubric",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Get},
			{Method: "POST", Pattern: "/refresh", Handler: h.Refresh},
		},
	}
}

// Get returns the current rubric categories and field registry.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	categories, err := h.sys.Categories(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	fields, err := h.sys.FieldRegistry(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	version, err := h.sys.Version(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"version":    version,
		"categories": categories,
		"fields":     fields,
	})
}

// Refresh busts the rubric cache so the next read reloads from source.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.sys.Refresh()
	w.WriteHeader(http.StatusNoContent)
}
