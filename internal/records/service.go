package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/strata-vc/dealdesk/internal/evidence"
	"github.com/strata-vc/dealdesk/internal/ingest"
	"github.com/strata-vc/dealdesk/pkg/pagination"
	"github.com/strata-vc/dealdesk/pkg/storage"
)

// syncWorkers bounds folder-sync parallelism; extraction is CPU and
// model-call bound, not I/O bound.
const syncWorkers = 4

type service struct {
	store         *Store
	blobs         storage.System
	evidence      evidence.System
	gateway       ingest.System
	overlay       Overlay
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// New creates the record system over the given store and collaborators.
func New(
	store *Store,
	blobs storage.System,
	ev evidence.System,
	gateway ingest.System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) System {
	return &service{
		store:         store,
		blobs:         blobs,
		evidence:      ev,
		gateway:       gateway,
		logger:        logger.With("system", "records"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger, s.pagination, s.maxUploadSize)
}

func (s *service) SetOverlay(overlay Overlay) {
	s.overlay = overlay
}

// applyOverlay refreshes CRM-owned fields in place before a record is
// served. Failure degrades to the stored snapshot rather than failing the
// read.
func (s *service) applyOverlay(ctx context.Context, r *Record) {
	if s.overlay == nil {
		return
	}
	if err := s.overlay.Overlay(ctx, r); err != nil {
		s.logger.Warn("crm overlay failed", "id", r.ID, "error", err)
	}
}

func (s *service) Create(ctx context.Context, cmd CreateCommand) (*Record, error) {
	if strings.TrimSpace(cmd.Company) == "" {
		return nil, fmt.Errorf("%w: company required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	r := &Record{
		ID:          uuid.NewString(),
		Company:     cmd.Company,
		URL:         cmd.URL,
		Description: cmd.Description,
		Industry:    cmd.Industry,
		Status:      StatusInProgress,
		Metrics:     make(map[string]MetricValue),
		Documents:   []Document{},
		Notes:       []Note{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("record created", "id", r.ID, "company", r.Company)
	return r, nil
}

// load returns the stored record as persisted, without the CRM overlay.
// Write paths use it so overlaid values are never saved back.
func (s *service) load(ctx context.Context, id string) (*Record, error) {
	r, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *service) Get(ctx context.Context, id string) (*Record, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.applyOverlay(ctx, r)
	return r, nil
}

func (s *service) List(ctx context.Context) ([]*Record, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.overlay != nil {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(syncWorkers)
		for _, r := range all {
			g.Go(func() error {
				s.applyOverlay(ctx, r)
				return nil
			})
		}
		// Overlay failures degrade per record; nothing to return here.
		_ = g.Wait()
	}
	return all, nil
}

func (s *service) Patch(ctx context.Context, id string, partial map[string]json.RawMessage) (*Record, error) {
	return s.store.Update(ctx, id, partial)
}

func (s *service) Delete(ctx context.Context, id string, folder FolderAction) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	switch folder {
	case FolderTrash:
		s.removeDocumentBlobs(ctx, r)
	case FolderArchive:
		s.archiveDocumentBlobs(ctx, r)
	case FolderKeep, "":
	default:
		return fmt.Errorf("%w: unknown folder action %q", ErrInvalidInput, folder)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("record deleted", "id", id, "folder_action", folder)
	return nil
}

func (s *service) Mutate(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(r); err != nil {
		return nil, err
	}

	r.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *service) AttachFile(ctx context.Context, id string, cmd AttachFileCommand) (*AttachResult, error) {
	if len(cmd.Data) == 0 || cmd.Filename == "" {
		return nil, fmt.Errorf("%w: file data and filename required", ErrInvalidInput)
	}

	docID := uuid.New()
	ext := strings.TrimPrefix(filepath.Ext(cmd.Filename), ".")
	key := documentKey(id, docID, cmd.Filename)

	text, err := s.evidence.Parse(ctx, cmd.Data, ext)
	if err != nil {
		return nil, err
	}

	if err := s.uploadBytes(ctx, key, cmd.Data); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := Document{
		ID:            docID,
		Name:          cmd.Filename,
		Type:          docType(cmd.DocType),
		FileType:      ext,
		StorageKey:    key,
		PageCount:     cmd.PageCount,
		ExtractedText: text,
		IngestStatus:  IngestIngested,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	r, err := s.Mutate(ctx, id, func(r *Record) error {
		r.Documents = append(r.Documents, doc)
		return nil
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, err
	}

	result := &AttachResult{Record: r, Document: r.FindDocument(docID)}
	if s.evidence.IsUnreadable(text) {
		result.Warning = "document text could not be extracted; it will be excluded from scoring"
	}

	s.logger.Info("document attached", "record", id, "document", docID, "name", cmd.Filename)
	return result, nil
}

func (s *service) AttachLink(ctx context.Context, id string, cmd AttachLinkCommand) (*AttachResult, error) {
	if cmd.URL == "" {
		return nil, fmt.Errorf("%w: url required", ErrInvalidInput)
	}

	resolved, err := s.gateway.Resolve(ctx, cmd.URL, cmd.AccessEmail)
	if err != nil {
		return nil, err
	}

	name := cmd.Name
	if name == "" {
		name = resolved.Title
	}
	if name == "" {
		name = cmd.URL
	}

	text := resolved.Text
	if resolved.Status != ingest.StatusIngested {
		// Placeholder recognized by the low-quality heuristic, so the
		// next scoring pass retries ingestion.
		text = "External document link: " + cmd.URL
	}

	docID := uuid.New()
	now := time.Now().UTC()
	doc := Document{
		ID:            docID,
		Name:          name,
		Type:          docType(cmd.DocType),
		ExternalURL:   cmd.URL,
		ExtractedText: text,
		IngestStatus:  IngestStatus(resolved.Status),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	r, err := s.Mutate(ctx, id, func(r *Record) error {
		r.Documents = append(r.Documents, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &AttachResult{Record: r, Document: r.FindDocument(docID)}
	switch resolved.Status {
	case ingest.StatusEmailRequired:
		result.Warning = "link is email-gated; supply an access email to ingest it"
	case ingest.StatusFailed:
		result.Warning = "link content could not be ingested"
	}

	return result, nil
}

func (s *service) SyncFolder(ctx context.Context, id string, files []FileInput) ([]SyncItem, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	items := make([]SyncItem, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncWorkers)

	var mu sync.Mutex

	for i, file := range files {
		g.Go(func() error {
			ext := strings.TrimPrefix(filepath.Ext(file.Filename), ".")

			text, err := s.evidence.Parse(gctx, file.Data, ext)
			if err != nil {
				items[i] = SyncItem{Filename: file.Filename, Error: err.Error()}
				return nil
			}

			docID := uuid.New()
			key := documentKey(id, docID, file.Filename)
			if err := s.uploadBytes(gctx, key, file.Data); err != nil {
				items[i] = SyncItem{Filename: file.Filename, Error: err.Error()}
				return nil
			}

			now := time.Now().UTC()
			doc := Document{
				ID:            docID,
				Name:          file.Filename,
				Type:          "other",
				FileType:      ext,
				StorageKey:    key,
				ExtractedText: text,
				IngestStatus:  IngestIngested,
				CreatedAt:     now,
				UpdatedAt:     now,
			}

			// Appends serialize on the record blob; the files themselves
			// were processed in parallel above.
			mu.Lock()
			_, err = s.Mutate(gctx, id, func(r *Record) error {
				r.Documents = append(r.Documents, doc)
				return nil
			})
			mu.Unlock()

			if err != nil {
				items[i] = SyncItem{Filename: file.Filename, Error: err.Error()}
				return nil
			}

			item := SyncItem{Filename: file.Filename, DocumentID: &docID}
			if s.evidence.IsUnreadable(text) {
				item.Warning = "text could not be extracted"
			}
			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *service) AddNote(ctx context.Context, id string, cmd NoteCommand) (*Record, error) {
	if strings.TrimSpace(cmd.Body) == "" {
		return nil, fmt.Errorf("%w: note body required", ErrInvalidInput)
	}

	category := cmd.Category
	switch category {
	case NoteMarket, NoteTeam, NoteTraction:
	default:
		category = NoteOther
	}

	return s.Mutate(ctx, id, func(r *Record) error {
		r.Notes = append(r.Notes, Note{
			ID:        uuid.New(),
			Category:  category,
			Body:      cmd.Body,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
}

func (s *service) uploadBytes(ctx context.Context, key string, data []byte) error {
	return s.blobs.Upload(ctx, key, bytes.NewReader(data), "application/octet-stream")
}

func (s *service) removeDocumentBlobs(ctx context.Context, r *Record) {
	for _, doc := range r.Documents {
		if doc.StorageKey == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
			s.logger.Warn("document blob delete failed", "key", doc.StorageKey, "error", err)
		}
	}
}

func (s *service) archiveDocumentBlobs(ctx context.Context, r *Record) {
	for _, doc := range r.Documents {
		if doc.StorageKey == "" {
			continue
		}

		reader, err := s.blobs.Download(ctx, doc.StorageKey)
		if err != nil {
			s.logger.Warn("document blob archive read failed", "key", doc.StorageKey, "error", err)
			continue
		}

		archived := "archive/" + doc.StorageKey
		err = s.blobs.Upload(ctx, archived, reader, "application/octet-stream")
		reader.Close()
		if err != nil {
			s.logger.Warn("document blob archive write failed", "key", archived, "error", err)
			continue
		}

		if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
			s.logger.Warn("document blob archive cleanup failed", "key", doc.StorageKey, "error", err)
		}
	}
}

func documentKey(recordID string, docID uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s/%s", recordID, docID, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" {
		name = "document"
	}
	return url.PathEscape(name)
}

func docType(t string) string {
	if t == "" {
		return "other"
	}
	return t
}
