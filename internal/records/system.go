package records

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// FolderAction is the cascade behavior applied to a record's document blobs
// on delete. At most one of archive/trash applies; keep leaves blobs alone.
type FolderAction string

const (
	FolderKeep    FolderAction = "keep"
	FolderArchive FolderAction = "archive"
	FolderTrash   FolderAction = "trash"
)

// CreateCommand carries the data needed to create a new record.
type CreateCommand struct {
	Company     string `json:"company"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Industry    string `json:"industry,omitempty"`
}

// AttachFileCommand carries an uploaded document for a record.
type AttachFileCommand struct {
	Data      []byte
	Filename  string
	DocType   string
	PageCount *int
}

// AttachLinkCommand carries an external document link for a record.
type AttachLinkCommand struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	DocType     string `json:"doc_type,omitempty"`
	AccessEmail string `json:"access_email,omitempty"`
}

// NoteCommand carries a categorized analyst note.
type NoteCommand struct {
	Category string `json:"category"`
	Body     string `json:"body"`
}

// AttachResult reports a document attachment plus any data-quality warning.
type AttachResult struct {
	Record   *Record   `json:"record"`
	Document *Document `json:"document"`
	Warning  string    `json:"warning,omitempty"`
}

// SyncItem reports the outcome of a single file within a folder sync. On
// failure Error is set and DocumentID is nil; the batch succeeds if at least
// one item succeeded.
type SyncItem struct {
	Filename   string     `json:"filename"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
	Warning    string     `json:"warning,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// FileInput is one file in a folder sync batch.
type FileInput struct {
	Filename string
	Data     []byte
}

// Overlay refreshes CRM-owned fields on a record before it is served. The
// synchronizer implements it; the indirection keeps this package free of a
// dependency on the sync layer.
type Overlay interface {
	Overlay(ctx context.Context, r *Record) error
}

// System defines the public contract for record domain operations.
type System interface {
	Handler() *Handler

	// SetOverlay installs the CRM read-path refresh applied by Get and
	// List. Set once at wiring time, after the synchronizer exists.
	SetOverlay(overlay Overlay)

	Create(ctx context.Context, cmd CreateCommand) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Patch(ctx context.Context, id string, partial map[string]json.RawMessage) (*Record, error)
	Delete(ctx context.Context, id string, folder FolderAction) error

	// Mutate loads the record, applies fn, and saves the result with a
	// bumped updatedAt. It is the single load-modify-save path used by
	// collaborating systems (sync, scoring).
	Mutate(ctx context.Context, id string, fn func(*Record) error) (*Record, error)

	AttachFile(ctx context.Context, id string, cmd AttachFileCommand) (*AttachResult, error)
	AttachLink(ctx context.Context, id string, cmd AttachLinkCommand) (*AttachResult, error)
	SyncFolder(ctx context.Context, id string, files []FileInput) ([]SyncItem, error)
	AddNote(ctx context.Context, id string, cmd NoteCommand) (*Record, error)
}
