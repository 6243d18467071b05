package records

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/strata-vc/dealdesk/pkg/handlers"
	"github.com/strata-vc/dealdesk/pkg/pagination"
	"github.com/strata-vc/dealdesk/pkg/routes"
)

// Handler provides HTTP endpoints for record operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// NewHandler creates a Handler with the given system, logger, pagination
// config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "records"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for record endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/records",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PATCH", Pattern: "/{id}", Handler: h.Patch},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/documents", Handler: h.UploadDocument},
			{Method: "POST", Pattern: "/{id}/documents/sync", Handler: h.SyncFolder},
			{Method: "POST", Pattern: "/{id}/links", Handler: h.AttachLink},
			{Method: "POST", Pattern: "/{id}/notes", Handler: h.AddNote},
		},
	}
}

// List returns a paginated list of records, optionally filtered by a search
// term matched against the company name.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromQuery(r.URL.Query(), h.pagination)

	all, err := h.sys.List(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	if page.Search != nil {
		term := strings.ToLower(*page.Search)
		filtered := all[:0]
		for _, rec := range all {
			if strings.Contains(strings.ToLower(rec.Company), term) {
				filtered = append(filtered, rec)
			}
		}
		all = filtered
	}

	total := len(all)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	handlers.RespondJSON(w, http.StatusOK,
		pagination.NewPageResult(all[start:end], total, page.Page, page.PageSize))
}

// Create registers a new record from a JSON body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	rec, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, rec)
}

// Find returns a single record by its id path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	rec, err := h.sys.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// Patch applies a partial JSON update to a record's top-level fields.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	var partial map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidPatch)
		return
	}

	rec, err := h.sys.Patch(r.Context(), r.PathValue("id"), partial)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rec)
}

// Delete removes a record. The folder query parameter controls the document
// blob cascade: keep (default), archive, or trash.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	folder := FolderAction(r.URL.Query().Get("folder"))

	if err := h.sys.Delete(r.Context(), r.PathValue("id"), folder); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadDocument processes a multipart form upload containing a diligence
// file. Extracts PDF page count automatically using pdfcpu.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidInput)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	cmd := AttachFileCommand{
		Data:      data,
		Filename:  header.Filename,
		DocType:   r.FormValue("doc_type"),
		PageCount: extractPDFPageCount(h.logger, data, header.Filename),
	}

	result, err := h.sys.AttachFile(r.Context(), r.PathValue("id"), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, result)
}

// SyncFolder processes a multipart form containing multiple files and
// attaches each as a document, reporting per-file outcomes.
func (h *Handler) SyncFolder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	var files []FileInput
	for _, header := range r.MultipartForm.File["files"] {
		data, err := readFormFile(header)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidInput)
			return
		}
		files = append(files, FileInput{Filename: header.Filename, Data: data})
	}

	items, err := h.sys.SyncFolder(r.Context(), r.PathValue("id"), files)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := http.StatusOK
	if allFailed(items) {
		status = http.StatusBadGateway
	}

	handlers.RespondJSON(w, status, map[string]any{"items": items})
}

// AttachLink registers an external document link and attempts ingestion.
func (h *Handler) AttachLink(w http.ResponseWriter, r *http.Request) {
	var cmd AttachLinkCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	result, err := h.sys.AttachLink(r.Context(), r.PathValue("id"), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, result)
}

// AddNote appends a categorized analyst note to a record.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var cmd NoteCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidInput)
		return
	}

	rec, err := h.sys.AddNote(r.Context(), r.PathValue("id"), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, rec)
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func allFailed(items []SyncItem) bool {
	for _, item := range items {
		if item.Error == "" {
			return false
		}
	}
	return len(items) > 0
}

func extractPDFPageCount(logger *slog.Logger, data []byte, filename string) *int {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		logger.Warn("failed to extract PDF page count", "error", err)
		return nil
	}

	return &count
}
