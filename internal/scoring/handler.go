package scoring

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/strata-vc/dealdesk/internal/records"
	"github.com/strata-vc/dealdesk/pkg/handlers"
	"github.com/strata-vc/dealdesk/pkg/routes"
)

// Handler provides HTTP endpoints for scoring operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "scoring"),
	}
}

// Routes returns the scoring route group. Score routes share the /records
// prefix with the record handler.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/records",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/score", Handler: h.Score},
			{Method: "PUT", Pattern: "/{id}/score/overrides/{category}", Handler: h.SetOverride},
			{Method: "DELETE", Pattern: "/{id}/score/overrides/{category}", Handler: h.RemoveOverride},
			{Method: "POST", Pattern: "/{id}/thesis-fit", Handler: h.ThesisFit},
		},
	}
}

// Score runs a scoring pass. The force query parameter bypasses the
// fingerprint short-circuit and always invokes the judgment agent.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	result, err := h.sys.Score(r.Context(), r.PathValue("id"), force)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// SetOverride applies a manual score override at the category level, or at
// the criterion level when the body names a criterion.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var cmd OverrideCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, records.ErrInvalidInput)
		return
	}

	rec, err := h.sys.SetOverride(r.Context(), r.PathValue("id"), r.PathValue("category"), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// RemoveOverride clears a manual override. The optional criterion query
// parameter targets a criterion-level override instead of the category.
func (h *Handler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	criterion := r.URL.Query().Get("criterion")

	rec, err := h.sys.RemoveOverride(r.Context(), r.PathValue("id"), r.PathValue("category"), criterion)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// ThesisFit runs the thesis-fit judgment and returns the updated record.
func (h *Handler) ThesisFit(w http.ResponseWriter, r *http.Request) {
	rec, err := h.sys.ThesisFit(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}
