package crmsync

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/strata-vc/dealdesk/internal/records"
	"github.com/strata-vc/dealdesk/pkg/handlers"
	"github.com/strata-vc/dealdesk/pkg/routes"
)

// Handler provides HTTP endpoints for CRM synchronization operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "crmsync"),
	}
}

// Routes returns the route group definition for sync endpoints. Record-scoped
// routes share the /records prefix with the record handler.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/records",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/stage", Handler: h.SetStage},
			{Method: "POST", Pattern: "/{id}/priority", Handler: h.SetPriority},
			{Method: "POST", Pattern: "/{id}/company", Handler: h.UpdateCompany},
			{Method: "POST", Pattern: "/{id}/autolink", Handler: h.AutoLink},
			{Method: "POST", Pattern: "/{id}/crm", Handler: h.CreateInCRM},
		},
	}
}

// PipelineRoutes returns the standalone pipeline listing group.
func (h *Handler) PipelineRoutes() routes.Group {
	return routes.Group{
		Prefix: "/pipelines",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.ListPipelines},
		},
	}
}

// SetStage moves the linked deal to a new stage, optionally across pipelines.
func (h *Handler) SetStage(w http.ResponseWriter, r *http.Request) {
	var cmd StageCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, records.ErrInvalidInput)
		return
	}

	rec, err := h.sys.SetStage(r.Context(), r.PathValue("id"), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// SetPriority sets the linked deal's priority.
func (h *Handler) SetPriority(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Priority string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, records.ErrInvalidInput)
		return
	}

	rec, err := h.sys.SetPriority(r.Context(), r.PathValue("id"), body.Priority)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// UpdateCompany writes company-level fields through to the CRM, committing
// each field independently and reporting per-field outcomes.
func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, records.ErrInvalidInput)
		return
	}
	if len(fields) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, records.ErrInvalidInput)
		return
	}

	results, err := h.sys.UpdateCompanyFields(r.Context(), r.PathValue("id"), fields)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := http.StatusOK
	if noneCommitted(results) {
		status = http.StatusBadGateway
	}

	handlers.RespondJSON(w, status, map[string]any{"fields": results})
}

// AutoLink searches the CRM for a deal matching the record's company name
// and links it when the match is unambiguous.
func (h *Handler) AutoLink(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.AutoLink(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// CreateInCRM creates a CRM company and deal from the record and links them.
func (h *Handler) CreateInCRM(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, records.ErrInvalidInput)
		return
	}

	rec, err := h.sys.CreateInCRM(r.Context(), r.PathValue("id"), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, rec)
}

// ListPipelines returns the CRM's deal pipelines with their stages.
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.sys.ListPipelines(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, pipelines)
}

func noneCommitted(results []FieldResult) bool {
	for _, result := range results {
		if result.Committed {
			return false
		}
	}
	return len(results) > 0
}
